package config

func loadTestConfig(cfg *Config) {
	// A low cost keeps password hashing fast in the test suite.
	cfg.BcryptCost = 4
	cfg.DatabaseFilePath = ":memory:"
	cfg.JWTSecret = "libloan-test-secret"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
}
