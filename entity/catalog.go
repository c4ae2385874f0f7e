package entity

import "fmt"

// Entity names, as used in configuration and reports.
const (
	Chain              = "chain"
	Hotel              = "hotel"
	Employee           = "employee"
	Login              = "login"
	RoomDescription    = "room_description"
	Room               = "room"
	Client             = "client"
	RoomUnavailability = "room_unavailability"
	Reservation        = "reservation"
)

// LoadOrder lists entities so that every table is loaded after the tables
// its foreign keys reference.
var LoadOrder = []string{
	Chain,
	Hotel,
	Employee,
	Login,
	RoomDescription,
	Room,
	Client,
	RoomUnavailability,
	Reservation,
}

// Options tune the per-entity rule set.
type Options struct {
	// ChainMinID is the smallest accepted chain identity; 0 disables the check.
	ChainMinID int64
}

// DefaultOptions enables the chain identity floor of 1.
func DefaultOptions() Options {
	return Options{ChainMinID: 1}
}

// Catalog returns the nine descriptors in LoadOrder.
func Catalog(opts Options) []*Descriptor {
	chainRules := []Rule{Coercible("chid"), RequireAll()}
	if opts.ChainMinID > 0 {
		chainRules = append(chainRules, AtLeast("chid", opts.ChainMinID))
	}

	byName := map[string]*Descriptor{
		Chain: {
			Name:     Chain,
			Table:    "chains",
			Identity: "chid",
			Fields: []Field{
				{Name: "chid", Kind: Int},
				{Name: "cname", Kind: Text},
				{Name: "springmkup", Kind: Float},
				{Name: "summermkup", Kind: Float},
				{Name: "fallmkup", Kind: Float},
				{Name: "wintermkup", Kind: Float},
			},
			Rules: chainRules,
		},
		Hotel: {
			Name:     Hotel,
			Table:    "hotel",
			Identity: "hid",
			Fields: []Field{
				{Name: "hid", Kind: Int},
				{Name: "chid", Kind: Int},
				{Name: "hname", Kind: Text},
				{Name: "hcity", Kind: Text},
			},
			ForeignKeys: []ForeignKey{{Column: "chid", RefTable: "chains", RefColumn: "chid"}},
			Rules:       []Rule{RequireAll()},
		},
		Employee: {
			Name:     Employee,
			Table:    "employee",
			Identity: "eid",
			Fields: []Field{
				{Name: "eid", Kind: Int},
				{Name: "hid", Kind: Int},
				{Name: "fname", Kind: Text},
				{Name: "lname", Kind: Text},
				{Name: "position", Kind: Text},
				{Name: "salary", Kind: Float},
			},
			ForeignKeys: []ForeignKey{{Column: "hid", RefTable: "hotel", RefColumn: "hid"}},
			Rules:       []Rule{Coercible("eid"), RequireAll()},
		},
		Login: {
			Name:     Login,
			Table:    "login",
			Identity: "lid",
			Fields: []Field{
				{Name: "lid", Kind: Int},
				{Name: "eid", Kind: Int},
				{Name: "username", Kind: Text},
				{Name: "password", Kind: Text, Secret: true},
			},
			ForeignKeys: []ForeignKey{{Column: "eid", RefTable: "employee", RefColumn: "eid"}},
			Rules:       []Rule{Coercible("lid"), RequireAll()},
		},
		RoomDescription: {
			Name:     RoomDescription,
			Table:    "roomdescription",
			Identity: "rdid",
			Fields: []Field{
				{Name: "rdid", Kind: Int},
				{Name: "rname", Kind: Text},
				{Name: "rtype", Kind: Text},
				{Name: "capacity", Kind: Int},
				{Name: "ishandicap", Kind: Bool},
			},
			Rules: []Rule{Coercible("rdid"), RequireAll()},
		},
		Room: {
			Name:     Room,
			Table:    "room",
			Identity: "rid",
			Fields: []Field{
				{Name: "rid", Kind: Int},
				{Name: "hid", Kind: Int},
				{Name: "rdid", Kind: Int},
				{Name: "rprice", Kind: Float},
			},
			ForeignKeys: []ForeignKey{
				{Column: "hid", RefTable: "hotel", RefColumn: "hid"},
				{Column: "rdid", RefTable: "roomdescription", RefColumn: "rdid"},
			},
			Rules: []Rule{RequireAll(), Positive("rprice")},
		},
		Client: {
			Name:     Client,
			Table:    "client",
			Identity: "clid",
			Fields: []Field{
				{Name: "clid", Kind: Int},
				{Name: "fname", Kind: Text},
				{Name: "lname", Kind: Text},
				{Name: "age", Kind: Int},
				{Name: "memberyear", Kind: Int},
			},
			Rules: []Rule{RequireAll()},
		},
		RoomUnavailability: {
			Name:     RoomUnavailability,
			Table:    "roomunavailable",
			Identity: "ruid",
			Fields: []Field{
				{Name: "ruid", Kind: Int},
				{Name: "rid", Kind: Int},
				{Name: "startdate", Kind: Date},
				{Name: "enddate", Kind: Date},
			},
			ForeignKeys: []ForeignKey{{Column: "rid", RefTable: "room", RefColumn: "rid"}},
			Rules:       []Rule{RequireAll()},
		},
		Reservation: {
			Name:     Reservation,
			Table:    "reserve",
			Identity: "reid",
			Fields: []Field{
				{Name: "reid", Kind: Int},
				{Name: "ruid", Kind: Int},
				{Name: "clid", Kind: Int},
				{Name: "total_cost", Kind: Float},
				{Name: "payment", Kind: Text},
				{Name: "guests", Kind: Int},
			},
			ForeignKeys: []ForeignKey{
				{Column: "ruid", RefTable: "roomunavailable", RefColumn: "ruid"},
				{Column: "clid", RefTable: "client", RefColumn: "clid"},
			},
			Rules: []Rule{RequireAll(), NonEmpty("payment"), AtLeast("guests", 1)},
		},
	}

	out := make([]*Descriptor, 0, len(LoadOrder))
	for _, name := range LoadOrder {
		out = append(out, byName[name])
	}
	return out
}

// Lookup finds a descriptor by entity name.
func Lookup(ds []*Descriptor, name string) (*Descriptor, bool) {
	for _, d := range ds {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// VerifyOrder checks that every foreign key references a table that appears
// earlier in ds.
func VerifyOrder(ds []*Descriptor) error {
	loaded := make(map[string]bool, len(ds))
	for _, d := range ds {
		for _, fk := range d.ForeignKeys {
			if !loaded[fk.RefTable] {
				return fmt.Errorf("%s.%s references %s, which is not loaded before it", d.Table, fk.Column, fk.RefTable)
			}
		}
		loaded[d.Table] = true
	}
	return nil
}
