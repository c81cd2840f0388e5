package models

// ModelTypeRegistry names every persisted model.
var ModelTypeRegistry = map[string]interface{}{
	"Listing":            Listing{},
	"ViewingDate":        ViewingDate{},
	"Slot":               Slot{},
	"TenantProfile":      TenantProfile{},
	"Application":        Application{},
	"ListingApplication": ListingApplication{},
	"LeaseAgreement":     LeaseAgreement{},
	"LeaseDocument":      LeaseDocument{},
	"LeaseComment":       LeaseComment{},
}

// All returns pointers to every model in dependency order, ready for
// AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Listing{},
		&ViewingDate{},
		&Slot{},
		&TenantProfile{},
		&Application{},
		&ListingApplication{},
		&LeaseAgreement{},
		&LeaseDocument{},
		&LeaseComment{},
	}
}
