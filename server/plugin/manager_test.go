package plugin

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dm-vev/alwaysfarm/server/block/legacy"
	"github.com/dm-vev/alwaysfarm/server/world"
	"github.com/dm-vev/alwaysfarm/server/world/farm"
	"github.com/google/uuid"
)

type testServer struct{}
type testConfig struct{}

type testHost struct {
	worlds *world.Registry

	mu    sync.Mutex
	tasks map[int]func()
	next  int
}

func newTestHost() *testHost {
	return &testHost{worlds: world.NewRegistry(), tasks: make(map[int]func())}
}

func (*testHost) Instance() testServer { return testServer{} }
func (*testHost) Config() testConfig   { return testConfig{} }
func (*testHost) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
func (*testHost) StartTime() time.Time      { return time.Time{} }
func (h *testHost) Worlds() *world.Registry { return h.worlds }
func (*testHost) Close() error              { return nil }
func (h *testHost) Exec(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func (h *testHost) ScheduleRepeating(_ int, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.tasks[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.tasks, id)
		h.mu.Unlock()
	}
}

func (h *testHost) runTasks() {
	h.mu.Lock()
	tasks := make([]func(), 0, len(h.tasks))
	for _, fn := range h.tasks {
		tasks = append(tasks, fn)
	}
	h.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func (h *testHost) taskCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tasks)
}

func TestSanitizePluginDirectory(t *testing.T) {
	cases := map[string]string{
		"":                  "plugin",
		"   ":               "plugin",
		"Example Plugin":    "example-plugin",
		"Example_Plugin":    "example_plugin",
		"Example.Plugin":    "example.plugin",
		"Example@Plugin#":   "example-plugin",
		"--Already-Safe--":  "already-safe",
		"MiXeD CaSe Name":   "mixed-case-name",
		"    dots...here  ": "dots...here",
	}

	for input, want := range cases {
		if got := sanitizePluginDirectory(input); got != want {
			t.Fatalf("sanitizePluginDirectory(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestManagerPluginDataDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root})

	got := manager.pluginDataDirectory("Example Plugin")
	want := filepath.Join(root, "data", "example-plugin")
	if got != want {
		t.Fatalf("pluginDataDirectory returned %q, want %q", got, want)
	}

	manager.cfg.DataDirectory = "custom"
	got = manager.pluginDataDirectory("Another Plugin")
	want = filepath.Join(root, "custom", "another-plugin")
	if got != want {
		t.Fatalf("pluginDataDirectory with custom root returned %q, want %q", got, want)
	}
}

func TestManagerDirectoryResolution(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root, DataDirectory: "state"})

	if got, want := manager.Directory(), root; got != want {
		t.Fatalf("Directory() = %q, want %q", got, want)
	}
	if got, want := manager.DataRoot(), filepath.Join(root, "state"); got != want {
		t.Fatalf("DataRoot() = %q, want %q", got, want)
	}
	abs := filepath.Join(root, "elsewhere")
	manager.cfg.DataDirectory = abs
	if got := manager.DataRoot(); got != abs {
		t.Fatalf("DataRoot() with absolute directory = %q, want %q", got, abs)
	}
}

type closingPlugin struct {
	name   string
	closed chan struct{}
	err    error
}

func newClosingPlugin(name string) *closingPlugin {
	return &closingPlugin{name: name, closed: make(chan struct{})}
}

func (p *closingPlugin) Name() string { return p.name }

func (p *closingPlugin) Close() error {
	if p.err != nil {
		return p.err
	}
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func factoryFor(p Plugin) Factory[testServer, testConfig] {
	return func(*API[testServer, testConfig]) (Plugin, error) { return p, nil }
}

func TestManagerEnable(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: root})

	var dataDir string
	info, err := manager.Enable("Crops", func(api *API[testServer, testConfig]) (Plugin, error) {
		dataDir = api.DataDirectory()
		return newClosingPlugin("crops"), nil
	})
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if info.Name != "Crops" || info.ID == uuid.Nil || info.DataDirectory != dataDir {
		t.Fatalf("unexpected info %+v", info)
	}
	if want := filepath.Join(root, "data", "crops"); dataDir != want {
		t.Fatalf("data directory = %q, want %q", dataDir, want)
	}
	if st, err := os.Stat(dataDir); err != nil || !st.IsDir() {
		t.Fatalf("data directory was not created: %v", err)
	}
	if _, ok := manager.Plugin("CROPS"); !ok {
		t.Fatalf("expected case-insensitive plugin lookup to succeed")
	}

	if _, err := manager.Enable("crops", factoryFor(newClosingPlugin("crops"))); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("Enable() duplicate error = %v, want ErrNameConflict", err)
	}
	mismatched := newClosingPlugin("other")
	if _, err := manager.Enable("named", factoryFor(mismatched)); !errors.Is(err, ErrNameMismatch) {
		t.Fatalf("Enable() mismatch error = %v, want ErrNameMismatch", err)
	}
	select {
	case <-mismatched.closed:
	default:
		t.Fatalf("mismatched plugin was not closed")
	}
	failing := errors.New("boom")
	if _, err := manager.Enable("failing", func(*API[testServer, testConfig]) (Plugin, error) { return nil, failing }); !errors.Is(err, failing) {
		t.Fatalf("Enable() factory error = %v, want %v", err, failing)
	}
	if got := len(manager.Infos()); got != 1 {
		t.Fatalf("expected 1 plugin loaded, got %d", got)
	}
}

func TestManagerEnableDisabled(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{})
	if _, err := manager.Enable("x", factoryFor(newClosingPlugin("x"))); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Enable() error = %v, want ErrDisabled", err)
	}
}

func TestManagerReload(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true, Directory: t.TempDir()})
	var instances []*closingPlugin
	factory := func(*API[testServer, testConfig]) (Plugin, error) {
		p := newClosingPlugin("reloadable")
		instances = append(instances, p)
		return p, nil
	}
	first, err := manager.Enable("reloadable", factory)
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	second, err := manager.Reload("Reloadable")
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected reload to assign a new id")
	}
	if len(instances) != 2 {
		t.Fatalf("expected factory to run twice, got %d", len(instances))
	}
	select {
	case <-instances[0].closed:
	default:
		t.Fatalf("first instance was not closed on reload")
	}
	if _, err := manager.Reload("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reload() missing error = %v, want ErrNotFound", err)
	}
}

func TestManagerDisableAll(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true})

	first := newClosingPlugin("first")
	second := newClosingPlugin("second")

	manager.plugins = []pluginInstance[testServer, testConfig]{
		{name: first.name, plugin: first},
		{name: second.name, plugin: second},
	}

	infos, err := manager.DisableAll()
	if err != nil {
		t.Fatalf("DisableAll() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("DisableAll() returned %d infos, want 2", len(infos))
	}
	if infos[0].Name != "second" || infos[1].Name != "first" {
		t.Fatalf("DisableAll() order = %v", infos)
	}

	select {
	case <-first.closed:
	default:
		t.Fatalf("first plugin was not closed")
	}
	select {
	case <-second.closed:
	default:
		t.Fatalf("second plugin was not closed")
	}

	if got := manager.Infos(); len(got) != 0 {
		t.Fatalf("DisableAll() left %d plugins loaded", len(got))
	}
}

func TestManagerDisableKeepsPluginOnCloseError(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true})
	stubborn := newClosingPlugin("stubborn")
	stubborn.err = errors.New("still busy")
	manager.plugins = []pluginInstance[testServer, testConfig]{{name: stubborn.name, plugin: stubborn}}

	if _, err := manager.Disable("stubborn"); err == nil {
		t.Fatalf("expected Disable() to fail")
	}
	if _, ok := manager.Plugin("stubborn"); !ok {
		t.Fatalf("expected plugin to stay loaded after failed close")
	}
	if _, err := manager.Disable("unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Disable() unknown error = %v, want ErrNotFound", err)
	}
}

func TestManagerDisableAllDisabled(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: false})

	if infos, err := manager.DisableAll(); !errors.Is(err, ErrDisabled) || infos != nil {
		t.Fatalf("DisableAll() = (%v, %v), want (nil, ErrDisabled)", infos, err)
	}
}

func TestManagerHandlePluginPanicDisablesPlugin(t *testing.T) {
	t.Parallel()

	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true})

	plugin := newClosingPlugin("panic")
	manager.plugins = []pluginInstance[testServer, testConfig]{{name: "panic", plugin: plugin}}
	manager.events.addWorld("panic", world.NopHandler{})

	manager.handlePluginPanic("panic", errors.New("boom"))

	select {
	case <-plugin.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("plugin close was not invoked after panic")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		manager.mu.RLock()
		remaining := len(manager.plugins)
		manager.mu.RUnlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("plugin was not removed after panic")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if regs := manager.events.loadWorldChain(); len(regs) != 0 {
		t.Fatalf("expected world handlers to be cleared, got %d registrations", len(regs))
	}
}

func TestScheduleRepeatingStopsOnDisable(t *testing.T) {
	t.Parallel()

	host := newTestHost()
	manager := NewManager[testServer, testConfig](host, Config{Enabled: true, Directory: t.TempDir()})

	var runs int
	_, err := manager.Enable("ticker", func(api *API[testServer, testConfig]) (Plugin, error) {
		api.ScheduleRepeating(20, func() { runs++ })
		cancel := api.ScheduleRepeating(40, func() { runs += 100 })
		cancel()
		cancel()
		return newClosingPlugin("ticker"), nil
	})
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	host.runTasks()
	if runs != 1 {
		t.Fatalf("expected only the active task to run once, got %d", runs)
	}
	if _, err := manager.Disable("ticker"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if n := host.taskCount(); n != 0 {
		t.Fatalf("expected tasks to stop on disable, %d left", n)
	}
}

type placeRecorder struct {
	world.NopHandler
	name   string
	cancel bool
	calls  *[]string
}

func (r placeRecorder) HandleBlockPlace(ctx *world.Context, _ cube.Pos, _ farm.Block) {
	*r.calls = append(*r.calls, r.name)
	if r.cancel {
		ctx.Cancel()
	}
}

func TestWorldChainOrderAndMonitors(t *testing.T) {
	manager := NewManager[testServer, testConfig](newTestHost(), Config{Enabled: true})
	world.SetHandlerWrap(manager.WorldHandlerWrap)
	t.Cleanup(func() { world.SetHandlerWrap(nil) })

	w, err := world.Config{Name: "w"}.New()
	if err != nil {
		t.Fatalf("create world: %v", err)
	}
	var calls []string
	w.Handle(placeRecorder{name: "base", calls: &calls})

	cancelling := placeRecorder{name: "guard", calls: &calls}
	remove := manager.events.addWorld("guard", cancelling)
	manager.events.addWorldMonitor("watch", placeRecorder{name: "monitor", calls: &calls})

	if !w.PlaceBlock(cube.Pos{}, farm.Block{Type: legacy.Wheat}) {
		t.Fatalf("expected place to succeed")
	}
	if want := []string{"guard", "base", "monitor"}; !slices.Equal(calls, want) {
		t.Fatalf("call order = %v, want %v", calls, want)
	}

	remove()
	calls = nil
	manager.events.addWorld("guard", placeRecorder{name: "guard", cancel: true, calls: &calls})
	if w.PlaceBlock(cube.Pos{1, 0, 0}, farm.Block{Type: legacy.Wheat}) {
		t.Fatalf("expected cancelled place to fail")
	}
	if want := []string{"guard", "monitor"}; !slices.Equal(calls, want) {
		t.Fatalf("call order after cancel = %v, want %v", calls, want)
	}

	manager.events.clear("watch")
	manager.events.clear("guard")
	calls = nil
	w.PlaceBlock(cube.Pos{2, 0, 0}, farm.Block{Type: legacy.Wheat})
	if want := []string{"base"}; !slices.Equal(calls, want) {
		t.Fatalf("call order after clear = %v, want %v", calls, want)
	}
}

// Ensure compile-time conformance for the test host.
var _ Host[testServer, testConfig] = (*testHost)(nil)
