package config

const (
	// DefaultDatabasePath is the default path for the local catalog database
	DefaultDatabasePath = "./catalog-mirror.db"

	// DefaultUpstreamBaseURL is the public PokeAPI root
	DefaultUpstreamBaseURL = "https://pokeapi.co/api/v2"
)
