package config

import "os"

var userHomeDir = os.UserHomeDir
