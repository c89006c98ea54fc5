package cli

// Version is set at build time with -ldflags "-X github.com/kdice/kdice/cli.Version=v1.2.3".
var Version = "dev"
