package util

// Application-level names relative to the medbuddy home directory.
const (
	MedbuddyDir  = ".medbuddy"
	SettingsFile = "medbuddy.toml"
	DataDir      = "data"
	LockFile     = ".lock"
	DotEnvFile   = ".env"
)

// Environment variables read by medbuddy.
const (
	EnvHome  = "MEDBUDDY_HOME"
	EnvToken = "MEDBUDDY_TOKEN"
)
