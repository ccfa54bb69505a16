package config

// DomainConfig holds the business rules of the comment domain.
type DomainConfig struct {
	// Comment constraints
	MinAuthorLength int

	// Soft delete placeholders
	DeletedText   string
	DeletedAuthor string

	// Moderation
	PublishOnCreate bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MinAuthorLength: 2,
		DeletedText:     ".xX Este comentario ha sido eliminado Xx.",
		DeletedAuthor:   "borrado",
		PublishOnCreate: true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	return DefaultDomainConfig()
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	return DefaultDomainConfig()
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// HoldForReview returns a copy that keeps new comments unpublished.
func (c *DomainConfig) HoldForReview() *DomainConfig {
	cp := *c
	cp.PublishOnCreate = false
	return &cp
}
