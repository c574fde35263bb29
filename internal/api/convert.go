package api

import (
	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/subenum"
)

func portScanOptions(req portScanRequest) portscan.Options {
	return portscan.Options{
		Ports:   req.Ports,
		Threads: req.Threads,
	}
}

func reverseOptions(req reverseDNSRequest) revdns.Options {
	return revdns.Options{
		Force:   req.Force,
		Threads: req.Threads,
	}
}

func subenumOptions(req subdomainsRequest) subenum.Options {
	return subenum.Options{
		CRT:            req.CRT,
		Brute:          req.Brute,
		SkipAliveCheck: req.SkipAliveCheck,
		Wordlist:       req.Wordlist,
		Threads:        req.Threads,
	}
}
