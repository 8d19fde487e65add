package cli

var (
	verbose    bool
	debug      bool
	configPath string
	adbPath    string
	scrcpyPath string

	// all device commands
	deviceId string

	// for commands that talk to a running server
	serverAddr  string
	serverToken string

	// for devices command
	showAllDevices bool
)
