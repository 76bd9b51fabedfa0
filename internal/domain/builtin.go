package domain

// BuiltInProjectIDs lists the sample projects shipped with the editor. They
// are regenerated on every start and are never user data.
var BuiltInProjectIDs = map[string]bool{
	"acme-ecommerce": true,
	"cbioportal":     true,
	"elan-warranty":  true,
	"empty-project":  true,
}

// IsBuiltIn reports whether p is a pre-packaged sample project.
func IsBuiltIn(p Project) bool {
	return BuiltInProjectIDs[p.ID]
}
