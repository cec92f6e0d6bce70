package domain

// BootstrapData describes the admin account seeded into an empty store.
type BootstrapData struct {
	AdminEmail    string
	AdminPassword string
}
