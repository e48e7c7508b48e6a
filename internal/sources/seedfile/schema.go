package seedfile

// SeedConfig represents the top-level structure of services.yaml
type SeedConfig struct {
	Services []ServiceSeed `yaml:"services"`
}

// ServiceSeed declares one chat service that must exist at startup
type ServiceSeed struct {
	Subdomain   string `yaml:"subdomain"`
	Description string `yaml:"description,omitempty"`
	Hidden      bool   `yaml:"hidden,omitempty"`
}
