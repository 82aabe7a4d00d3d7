// Command btshell is an interactive shell over a blocktree index.
//
// Usage:
//
//	btshell -file index.db -create
//	btshell -file index.db -blocksize 256 -blocks 64 -keysize 8 -valuesize 8
//
// Commands are read from stdin, one per line:
//
//	INSERT <key> <value>
//	LOOKUP <key>
//	UPDATE <key> <value>
//	DELETE <key>
//	DISPLAY [depth|dot|sorted]
//	SANITY
//	QUIT
//
// Keys and values shorter than the configured widths are right-padded
// with spaces.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"blocktree"
	"blocktree/cache"
	"blocktree/internal/storage"
	"blocktree/logger"
)

func main() {
	var (
		path      = flag.String("file", "index.db", "backing device file")
		blockSize = flag.Uint("blocksize", 256, "device block size in bytes")
		numBlocks = flag.Uint64("blocks", 64, "device size in blocks")
		keySize   = flag.Uint("keysize", 8, "key width in bytes")
		valueSize = flag.Uint("valuesize", 8, "value width in bytes")
		cacheKind = flag.String("cache", "lru", "buffer cache kind: lru or ristretto")
		cacheCap  = flag.Uint("cachecap", 32, "buffer cache capacity in blocks")
		useMMap   = flag.Bool("mmap", false, "use the memory-mapped device")
		create    = flag.Bool("create", false, "format the device before attaching")
		verbose   = flag.Bool("v", false, "log tree events")
	)
	flag.Parse()

	if err := run(*path, uint32(*blockSize), *numBlocks, uint32(*keySize),
		uint32(*valueSize), *cacheKind, uint32(*cacheCap), *useMMap, *create, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "btshell:", err)
		os.Exit(1)
	}
}

func run(path string, blockSize uint32, numBlocks uint64, keySize, valueSize uint32,
	cacheKind string, cacheCap uint32, useMMap, create, verbose bool) error {

	var (
		dev storage.Device
		err error
	)
	if useMMap {
		dev, err = storage.NewMMap(path, blockSize, numBlocks)
	} else {
		dev, err = storage.NewFile(path, blockSize, numBlocks)
	}
	if err != nil {
		return err
	}

	var bc blocktree.BufferCache
	switch cacheKind {
	case "lru":
		bc, err = cache.NewLRU(dev, cacheCap)
	case "ristretto":
		bc, err = cache.NewRistretto(dev, int64(cacheCap))
	default:
		err = fmt.Errorf("unknown cache kind %q", cacheKind)
	}
	if err != nil {
		dev.Close()
		return err
	}

	log := blocktree.Discard
	if verbose {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer zl.Sync()
		log = logger.NewZap(zl)
	}

	tree := blocktree.New(keySize, valueSize, bc, blocktree.WithLogger(log))
	if err := tree.Attach(0, create); err != nil {
		return err
	}
	defer func() {
		if err := tree.Detach(); err != nil {
			fmt.Fprintln(os.Stderr, "btshell: detach:", err)
		}
		dev.Close()
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])
		if cmd == "QUIT" || cmd == "EXIT" {
			break
		}
		if err := dispatch(tree, cmd, fields[1:], keySize, valueSize); err != nil {
			fmt.Println("ERROR:", err)
		}
	}
	return sc.Err()
}

func dispatch(tree *blocktree.Tree, cmd string, args []string, keySize, valueSize uint32) error {
	switch cmd {
	case "INSERT":
		if len(args) != 2 {
			return fmt.Errorf("usage: INSERT <key> <value>")
		}
		key, err := pad(args[0], keySize)
		if err != nil {
			return err
		}
		val, err := pad(args[1], valueSize)
		if err != nil {
			return err
		}
		if err := tree.Insert(key, val); err != nil {
			return err
		}
		fmt.Println("OK")
	case "LOOKUP":
		if len(args) != 1 {
			return fmt.Errorf("usage: LOOKUP <key>")
		}
		key, err := pad(args[0], keySize)
		if err != nil {
			return err
		}
		val, err := tree.Lookup(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", val)
	case "UPDATE":
		if len(args) != 2 {
			return fmt.Errorf("usage: UPDATE <key> <value>")
		}
		key, err := pad(args[0], keySize)
		if err != nil {
			return err
		}
		val, err := pad(args[1], valueSize)
		if err != nil {
			return err
		}
		if err := tree.Update(key, val); err != nil {
			return err
		}
		fmt.Println("OK")
	case "DELETE":
		if len(args) != 1 {
			return fmt.Errorf("usage: DELETE <key>")
		}
		key, err := pad(args[0], keySize)
		if err != nil {
			return err
		}
		return tree.Delete(key)
	case "DISPLAY":
		mode := blocktree.DisplayDepth
		if len(args) == 1 {
			switch strings.ToLower(args[0]) {
			case "depth":
				mode = blocktree.DisplayDepth
			case "dot":
				mode = blocktree.DisplayDepthDot
			case "sorted":
				mode = blocktree.DisplaySortedKeyval
			default:
				return fmt.Errorf("unknown display mode %q", args[0])
			}
		}
		return tree.Display(os.Stdout, mode)
	case "SANITY":
		if err := tree.SanityCheck(); err != nil {
			return err
		}
		fmt.Println("SANE")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// pad right-pads s with spaces to width bytes.
func pad(s string, width uint32) ([]byte, error) {
	if len(s) > int(width) {
		return nil, fmt.Errorf("%q longer than %d bytes", s, width)
	}
	b := make([]byte, width)
	copy(b, s)
	for i := len(s); i < int(width); i++ {
		b[i] = ' '
	}
	return b, nil
}
