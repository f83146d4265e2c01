package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// clientConfig defines the runtime options for the "client" CLI commands
type clientConfig struct {
	// the TCP host/port of the argus server
	serverAddr string
	// if true, connect to the server over plain HTTP rather than HTTPS
	disableTLS bool
}

// clientOption defines a functional option that configures a particular "client" CLI runtime option
type clientOption func(*clientConfig) error

// withServerAddress assigns the TCP host/port of the argus server
func withServerAddress(addr string) clientOption {
	return func(conf *clientConfig) error {
		conf.serverAddr = addr
		return nil
	}
}

// withoutTLS disables TLS on connections to the argus server
func withoutTLS() clientOption {
	return func(conf *clientConfig) error {
		conf.disableTLS = true
		return nil
	}
}

// readClientConfigEnv scans the process environment vars and returns a list of 0 or more config options
func readClientConfigEnv() []clientOption {
	var opts []clientOption

	if addr := os.Getenv("ARGUS_SERVER_ADDR"); addr != "" {
		opts = append(opts, withServerAddress(addr))
	}

	return opts
}

// readClientConfigFlags scans the CLI flags in the provided flag set and returns a list of 0 or more
// config options
func readClientConfigFlags(fset *pflag.FlagSet) []clientOption {
	var opts []clientOption

	if addr, err := fset.GetString("server-addr"); err == nil && addr != "" {
		opts = append(opts, withServerAddress(addr))
	}
	if insecure, err := fset.GetBool("insecure"); err == nil && insecure {
		opts = append(opts, withoutTLS())
	}

	return opts
}

// dialServer constructs an API client for the configured server address
func (c clientConfig) dialServer() (*apiClient, error) {
	if c.serverAddr == "" {
		return nil, fmt.Errorf("the argus server address must be specified")
	}
	return newAPIClient(c.serverAddr, c.disableTLS), nil
}
