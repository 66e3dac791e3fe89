package configuration

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	StorageMode       string `usage:"storage mode: memory or disk"`
	StoragePath       string `usage:"data directory in disk mode"`
	IdleTimeoutMs     int64  `usage:"dump dirty collections after this many idle milliseconds"`
	DumpIntervalMs    int64  `usage:"milliseconds between idle checks"`
	AdminUsername     string `usage:"admin username, created on first start"`
	AdminPassword     string `usage:"admin password, only used when the admin is created"`
	BcryptCost        int    `usage:"bcrypt cost for password hashes"`
	LogLevel          string `usage:"log level: debug, info, warn or error"`
	LogFormat         string `usage:"log format: console or json"`
	EnableCompression bool   `usage:"gzip responses"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:          "127.0.0.1:8080",
		StorageMode:       "disk",
		StoragePath:       "data",
		IdleTimeoutMs:     2000,
		DumpIntervalMs:    1000,
		AdminUsername:     "admin",
		AdminPassword:     "admin",
		BcryptCost:        10,
		LogLevel:          "info",
		LogFormat:         "console",
		EnableCompression: true,
		ShowBanner:        true,
	}
}
