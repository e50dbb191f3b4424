// Command hoschicrawl crawls a Bitcoin-family peer-to-peer network from a
// set of seed peers outward, dumping the neighbor relationships it
// discovers to an append-only file. See internal/engine for the crawl
// itself; this file only parses flags, wires the ambient collaborators
// together, and drives them to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sebastiankr/hoschicrawl/internal/config"
	"github.com/sebastiankr/hoschicrawl/internal/dedupe"
	"github.com/sebastiankr/hoschicrawl/internal/engine"
	"github.com/sebastiankr/hoschicrawl/internal/logging"
	"github.com/sebastiankr/hoschicrawl/internal/restore"
	"github.com/sebastiankr/hoschicrawl/internal/statusapi"
	"github.com/sebastiankr/hoschicrawl/internal/wire"
)

// seedList accumulates repeated -s flags, the equivalent of the reference
// getopt loop's seeds.emplace(optarg, 1) for each occurrence.
type seedList []string

func (s *seedList) String() string { return fmt.Sprint([]string(*s)) }
func (s *seedList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func usage() {
	fmt.Fprint(os.Stderr, "Usage:\n\nhoschicrawl <-4 ip4> <-6 ip6> [-p lport] [-r node-file] [-d node-file] [-l logfile] <-s seed-node> [-s seednode] ...\n"+
		"\t-4 -- local IPv4 address to bind to\n"+
		"\t-6 -- local IPv6 address to bind to\n"+
		"\t-p -- local port to bind to (default any)\n"+
		"\t-r -- restore from previous mapping's result dumped into '-d'\n"+
		"\t-d -- dump (append) found nodes to this file; default: nodemap.txt\n"+
		"\t-l -- log what we do to this file; default: btclog.txt\n"+
		"\t-c -- optional YAML config file layered beneath the flags above\n"+
		"\t-status -- optional host:port to serve live crawl stats over HTTP\n"+
		"\t-pogreb -- optional directory for a durable dedup store\n"+
		"\t-s -- seed with this node. format is [ip]:port where ip is v4 or v6. [127.0.0.1]:8333 if you run a local bitcoind\n\n")
	os.Exit(1)
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		l4, l6, lport        string
		restoreFile, dumpF   string
		logFile, configFile  string
		statusAddr, pogrebDir string
		seeds                seedList
	)

	flag.StringVar(&l4, "4", "", "local IPv4 address to bind to")
	flag.StringVar(&l6, "6", "", "local IPv6 address to bind to")
	flag.StringVar(&lport, "p", "", "local port to bind to")
	flag.StringVar(&restoreFile, "r", "", "restore file")
	flag.StringVar(&dumpF, "d", "", "dump file")
	flag.StringVar(&logFile, "l", "", "log file")
	flag.StringVar(&configFile, "c", "", "optional YAML config file")
	flag.StringVar(&statusAddr, "status", "", "optional host:port to serve live crawl stats")
	flag.StringVar(&pogrebDir, "pogreb", "", "optional durable dedup store directory")
	flag.Var(&seeds, "s", "seed node, format [ip]:port (repeatable)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return 1
	}
	if l4 != "" {
		cfg.LocalIPv4 = l4
	}
	if l6 != "" {
		cfg.LocalIPv6 = l6
	}
	if lport != "" {
		cfg.LocalPort = lport
	}
	if restoreFile != "" {
		cfg.RestoreFile = restoreFile
	}
	if dumpF != "" {
		cfg.DumpFile = dumpF
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if statusAddr != "" {
		cfg.StatusAddr = statusAddr
	}
	if pogrebDir != "" {
		cfg.PogrebDir = pogrebDir
	}

	if cfg.LocalIPv4 == "" && cfg.LocalIPv6 == "" {
		usage()
	}

	logDst, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error %v\n", err)
		return 1
	}
	defer logDst.Close()
	logger := logging.New(log.New(logDst, "", 0))
	fmt.Printf("Starting crawl. Check %s for progress.\n", cfg.LogFile)

	// SIGHUP/SIGPIPE carry no meaning for this crawl; ignored rather than
	// left to terminate the process, matching the reference main's
	// sigaction(..., SIG_IGN) for both.
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	magic, err := networkMagic(cfg.NetworkMagic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error %v\n", err)
		return 1
	}

	dialer, err := buildDialer(cfg.LocalIPv4, cfg.LocalIPv6, cfg.LocalPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error %v\n", err)
		return 1
	}

	if raised, err := engine.RaiseFDLimit(1 << 16); err != nil {
		logger.Logf("main", "could not raise fd limit: %v", err)
	} else {
		logger.Logf("main", "fd limit raised to %d", raised)
	}

	dumpFile, err := restore.OpenDump(cfg.DumpFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error %v\n", err)
		return 1
	}
	defer dumpFile.Close()

	var store dedupe.Store = dedupe.NullStore{}
	if cfg.PogrebDir != "" {
		pstore, err := dedupe.Open(cfg.PogrebDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error %v\n", err)
			return 1
		}
		defer pstore.Close()
		store = pstore
	}

	opts := []engine.Option{engine.WithLogger(logger), engine.WithDedupe(store)}
	e := engine.New(magic, dialer, dumpFile, cfg.LocalPort != "", opts...)

	logger.Logf("main", "Starting crawl. run=%s", e.RunID())
	fmt.Fprintf(dumpFile, "# run=%s\n", e.RunID())

	var status *statusapi.Server
	if cfg.StatusAddr != "" {
		status = statusapi.New(cfg.StatusAddr, e)
		e.SetStatusServer(status)
		go func() {
			if err := status.Serve(); err != nil {
				logger.Logf("main", "status server: %v", err)
			}
		}()
		defer status.Close()
	}

	// Seeds are registered before the restore file is read so that a
	// restore-file entry duplicating a seed does not double-count. The
	// YAML config's seed list and repeated -s flags are both honored.
	allSeeds := append(append([]string{}, cfg.Seeds...), seeds...)
	if len(allSeeds) > 0 {
		e.SeedNodes(allSeeds)
	}
	if cfg.RestoreFile != "" {
		handled, learned, err := restore.Load(cfg.RestoreFile, engine.ReconnectCap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error %v\n", err)
			return 1
		}
		e.RestoreHandled(handled)
		e.RestoreLearned(learned)
	}

	if err := e.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error in crawl engine: %v\n", err)
		logger.Logf("main", "crawl ended with error: %v", err)
		return 1
	}

	fmt.Println("crawl engine exited gracefully.")
	logger.Logf("main", "Graceful end of crawl. run=%s", e.RunID())
	return 0
}

func networkMagic(name string) (uint32, error) {
	switch name {
	case "", "testnet3":
		return wire.MagicTestnet3, nil
	case "main":
		return wire.MagicMain, nil
	case "testnet":
		return wire.MagicTestnet, nil
	case "namecoin":
		return wire.MagicNamecoin, nil
	default:
		return 0, fmt.Errorf("unknown network magic %q", name)
	}
}

func buildDialer(ipv4, ipv6, port string) (*engine.TCPDialer, error) {
	d := &engine.TCPDialer{}
	p := 0
	if port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", port, err)
		}
		p = parsed
	}

	if ipv4 != "" {
		ip := net.ParseIP(ipv4)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 bind address %q", ipv4)
		}
		d.LocalV4 = &net.TCPAddr{IP: ip, Port: p}
	}
	if ipv6 != "" {
		ip := net.ParseIP(ipv6)
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv6 bind address %q", ipv6)
		}
		d.LocalV6 = &net.TCPAddr{IP: ip, Port: p}
	}
	return d, nil
}
