package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dm-vev/alwaysfarm/server"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/plugin/alwaysfarm"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
	"github.com/go-gl/mathgl/mgl64"
)

// Console reads commands from an io.Reader (defaulting to os.Stdin) and executes them on the server
// goroutine of the provided server.
type Console struct {
	srv    *server.Server
	log    *slog.Logger
	reader io.Reader
}

// New returns a Console bound to the provided server. The console reads from os.Stdin and writes command
// output to the supplied logger.
func New(srv *server.Server, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		srv:    srv,
		log:    log,
		reader: os.Stdin,
	}
}

// WithReader sets a custom reader for the console input. It enables testing the console without relying
// on os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run starts consuming commands from the console. It blocks until the context is cancelled, the stop
// command is read or the underlying reader reaches EOF.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "err", err)
			}
			return
		}
		args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(scanner.Text()), "/"))
		if len(args) == 0 {
			continue
		}
		name := strings.ToLower(args[0])
		if name == "stop" {
			return
		}
		cmd, ok := commands[name]
		if !ok {
			c.log.Error("Unknown command.", "command", name, "commands", commandNames())
			continue
		}

		var err error
		done := c.srv.Exec(func() { err = cmd(c, args[1:]) })
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		if err != nil {
			c.log.Error(err.Error(), "command", name)
		}
	}
}

type command func(c *Console, args []string) error

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   (*Console).help,
		"tps":    (*Console).tps,
		"worlds": (*Console).worlds,
		"farm":   (*Console).farm,
		"crop":   (*Console).crop,
		"save":   (*Console).save,
		"load":   (*Console).load,
		"unload": (*Console).unload,
		"reload": (*Console).reload,
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands)+1)
	for name := range commands {
		names = append(names, name)
	}
	names = append(names, "stop")
	slices.Sort(names)
	return names
}

func (c *Console) help([]string) error {
	c.log.Info("Commands.", "commands", strings.Join(commandNames(), ", "))
	return nil
}

func (c *Console) tps([]string) error {
	c.log.Info("Server TPS.", "tps", fmt.Sprintf("%.2f", c.srv.TPS()))
	return nil
}

func (c *Console) worlds([]string) error {
	for _, w := range c.srv.Worlds().All() {
		c.log.Info("World.", "name", w.Name(), "loadedChunks", len(w.LoadedChunks()))
	}
	return nil
}

func (c *Console) farm([]string) error {
	f, err := c.farmInstance()
	if err != nil {
		return err
	}
	c.log.Info("Farm.", "tracked", f.TrackedLen(), "queued", f.QueueLen())
	return nil
}

// crop reports the record of the block at "<world> <x> <y> <z>". Coordinates may be fractional, as a
// player position is.
func (c *Console) crop(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: <world> <x> <y> <z>")
	}
	w, ok := c.srv.World(args[0])
	if !ok {
		return fmt.Errorf("unknown world %v", args[0])
	}
	var v mgl64.Vec3
	for i, arg := range args[1:] {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("parse coordinate %v: %w", arg, err)
		}
		v[i] = f
	}
	f, err := c.farmInstance()
	if err != nil {
		return err
	}
	s, ok := f.TrackedAt(w.Name(), v)
	if !ok {
		return fmt.Errorf("no crop tracked at %v in world %v", farm.BlockPosOf(v), w.Name())
	}
	c.log.Info("Crop.",
		"pos", farm.BlockPosOf(v),
		"type", legacy.Name(s.Type),
		"stage", w.Block(farm.BlockPosOf(v)).Meta,
		"plantedAt", s.PlantedAt,
		"fruitAt", s.FruitAt,
		"queued", f.QueuedAt(w.Name(), v),
	)
	return nil
}

func (c *Console) save([]string) error {
	f, err := c.farmInstance()
	if err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save farm: %w", err)
	}
	c.log.Info("Farm saved.", "tracked", f.TrackedLen(), "queued", f.QueueLen())
	return nil
}

func (c *Console) load(args []string) error {
	w, pos, err := c.chunkArgs(args)
	if err != nil {
		return err
	}
	if !w.LoadChunk(pos) {
		return fmt.Errorf("chunk %v of world %v is already loaded", pos, w.Name())
	}
	c.log.Info("Chunk loaded.", "world", w.Name(), "chunk", pos)
	return nil
}

func (c *Console) unload(args []string) error {
	w, pos, err := c.chunkArgs(args)
	if err != nil {
		return err
	}
	if !w.UnloadChunk(pos) {
		return fmt.Errorf("chunk %v of world %v is not loaded", pos, w.Name())
	}
	c.log.Info("Chunk unloaded.", "world", w.Name(), "chunk", pos)
	return nil
}

func (c *Console) reload(args []string) error {
	name := alwaysfarm.Name
	if len(args) > 0 {
		name = strings.Join(args, " ")
	}
	info, err := c.srv.Plugins().Reload(name)
	if err != nil {
		return fmt.Errorf("reload plugin: %w", err)
	}
	c.log.Info("Plugin reloaded.", "name", info.Name, "id", info.ID)
	return nil
}

// chunkArgs parses the arguments "<world> <x> <z>" of a chunk command.
func (c *Console) chunkArgs(args []string) (*world.World, world.ChunkPos, error) {
	if len(args) != 3 {
		return nil, world.ChunkPos{}, fmt.Errorf("usage: <world> <chunk x> <chunk z>")
	}
	w, ok := c.srv.World(args[0])
	if !ok {
		return nil, world.ChunkPos{}, fmt.Errorf("unknown world %v", args[0])
	}
	x, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return nil, world.ChunkPos{}, fmt.Errorf("parse chunk x: %w", err)
	}
	z, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil {
		return nil, world.ChunkPos{}, fmt.Errorf("parse chunk z: %w", err)
	}
	return w, world.ChunkPos{int32(x), int32(z)}, nil
}

func (c *Console) farmInstance() (*farm.Farm, error) {
	p, ok := c.srv.Plugins().Plugin(alwaysfarm.Name)
	if !ok {
		return nil, fmt.Errorf("farm is not enabled")
	}
	return p.(*alwaysfarm.Plugin[*server.Server, server.Config]).Farm(), nil
}
