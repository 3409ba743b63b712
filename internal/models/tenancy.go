package models

import "time"

// The methods below give every entity a uniform tenancy surface so the data
// gateway can scope, stamp, and timestamp them generically.
//
// OrganizationRef is the value the tenant filter matches against. For most
// entities that is the organization_id column; an Organization is its own
// tenancy root, so it matches on its primary key and SetOrganizationRef is a
// no-op there.

func (o *Organization) EntityID() string          { return o.ID }
func (o *Organization) OrganizationRef() string   { return o.ID }
func (o *Organization) SetOrganizationRef(string) {}
func (o *Organization) SetEntityID(id string)     { o.ID = id }
func (o *Organization) SetTimestamps(t time.Time) { o.CreatedAt, o.UpdatedAt = t, t }

func (u *User) EntityID() string              { return u.ID }
func (u *User) OrganizationRef() string       { return u.OrganizationID }
func (u *User) SetOrganizationRef(org string) { u.OrganizationID = org }
func (u *User) SetEntityID(id string)         { u.ID = id }
func (u *User) SetTimestamps(t time.Time)     { u.CreatedAt, u.UpdatedAt = t, t }

func (v *Vendor) EntityID() string              { return v.ID }
func (v *Vendor) OrganizationRef() string       { return v.OrganizationID }
func (v *Vendor) SetOrganizationRef(org string) { v.OrganizationID = org }
func (v *Vendor) SetEntityID(id string)         { v.ID = id }
func (v *Vendor) SetTimestamps(t time.Time)     { v.CreatedAt, v.UpdatedAt = t, t }

func (i *Invoice) EntityID() string              { return i.ID }
func (i *Invoice) OrganizationRef() string       { return i.OrganizationID }
func (i *Invoice) SetOrganizationRef(org string) { i.OrganizationID = org }
func (i *Invoice) SetEntityID(id string)         { i.ID = id }
func (i *Invoice) SetTimestamps(t time.Time)     { i.CreatedAt, i.UpdatedAt = t, t }
