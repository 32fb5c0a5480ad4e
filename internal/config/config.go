// Package config loads the service configuration from command line
// flags with environment variable overrides.
package config

import (
	"flag"
	"net"
	"os"
	"strconv"
)

// Config holds the connection service configuration.
type Config struct {
	// SIP settings
	SIPPort       int
	BindAddr      string // Address to bind for listening
	AdvertiseAddr string // Address to advertise in SIP headers
	UserAgent     string // User-Agent / display identity

	// RTP settings
	RTPPortMin int
	RTPPortMax int

	// Admin API
	APIAddr string

	// Behavior
	MultipartyCapable bool // Whether the line may host conference calls
	EventBufferSize   int  // Per-adapter event queue depth
	LogLevel          string
	NodeID            string
}

// Load loads configuration from command line flags and environment variables.
func Load() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.SIPPort, "port", 5060, "SIP listening port")
	flag.StringVar(&cfg.BindAddr, "bind", "0.0.0.0", "SIP bind address")
	flag.StringVar(&cfg.AdvertiseAddr, "advertise", "", "Address to advertise in SIP headers (auto-detected if not set)")
	flag.StringVar(&cfg.UserAgent, "useragent", "linegate", "User agent identity")
	flag.IntVar(&cfg.RTPPortMin, "rtp-min", 10000, "Lowest RTP port to allocate")
	flag.IntVar(&cfg.RTPPortMax, "rtp-max", 20000, "Highest RTP port to allocate")
	flag.StringVar(&cfg.APIAddr, "api", ":8080", "Admin API listen address")
	flag.BoolVar(&cfg.MultipartyCapable, "multiparty", false, "Allow hosting multi-party calls")
	flag.IntVar(&cfg.EventBufferSize, "event-buffer", 64, "Per-connection event queue depth")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.NodeID, "node", "", "Node identifier for published events (hostname if not set)")

	flag.Parse()

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.SIPPort = p
		}
	}
	if bind := os.Getenv("BIND"); bind != "" {
		cfg.BindAddr = bind
	}
	if advertise := os.Getenv("ADVERTISE"); advertise != "" {
		cfg.AdvertiseAddr = advertise
	}
	if cfg.AdvertiseAddr == "" || !isValidAddress(cfg.AdvertiseAddr) {
		cfg.AdvertiseAddr = getPrimaryInterfaceIP()
	}
	if api := os.Getenv("API_ADDR"); api != "" {
		cfg.APIAddr = api
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}
	if rtpMin := os.Getenv("RTP_PORT_MIN"); rtpMin != "" {
		if p, err := strconv.Atoi(rtpMin); err == nil {
			cfg.RTPPortMin = p
		}
	}
	if rtpMax := os.Getenv("RTP_PORT_MAX"); rtpMax != "" {
		if p, err := strconv.Atoi(rtpMax); err == nil {
			cfg.RTPPortMax = p
		}
	}
	if multiparty := os.Getenv("MULTIPARTY"); multiparty != "" {
		if b, err := strconv.ParseBool(multiparty); err == nil {
			cfg.MultipartyCapable = b
		}
	}
	if cfg.NodeID == "" {
		if node := os.Getenv("NODE_ID"); node != "" {
			cfg.NodeID = node
		} else if hostname, err := os.Hostname(); err == nil {
			cfg.NodeID = hostname
		}
	}

	return cfg
}

// isValidAddress checks if the address is a valid IP or resolvable hostname.
func isValidAddress(addr string) bool {
	if ip := net.ParseIP(addr); ip != nil {
		return true
	}
	if ips, err := net.LookupIP(addr); err == nil && len(ips) > 0 {
		return true
	}
	return false
}

// getPrimaryInterfaceIP detects the primary network interface IP address.
func getPrimaryInterfaceIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
