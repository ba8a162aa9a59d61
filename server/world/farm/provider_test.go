package farm

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFileProvider(t *testing.T) {
	for _, compress := range []bool{false, true} {
		p := FileProvider{Dir: t.TempDir(), Compress: compress}
		if _, err := p.Load(DocumentFarm); !errors.Is(err, ErrDocumentNotFound) {
			t.Fatalf("expected ErrDocumentNotFound, got %v", err)
		}
		if err := p.Save(DocumentFarm, []byte(`{"world":{}}`)); err != nil {
			t.Fatalf("save document: %v", err)
		}
		data, err := p.Load(DocumentFarm)
		if err != nil {
			t.Fatalf("load document: %v", err)
		}
		if string(data) != `{"world":{}}` {
			t.Fatalf("expected document to survive, got %s", data)
		}
		if strings.HasSuffix(p.Path(DocumentFarm), ".zst") != compress {
			t.Fatalf("unexpected document path %s", p.Path(DocumentFarm))
		}
		if _, err := os.Stat(p.Path(DocumentFarm) + ".tmp"); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected temporary file to be gone, got %v", err)
		}
	}
}

func TestFarmWithFileProvider(t *testing.T) {
	p := FileProvider{Dir: t.TempDir(), Compress: true}
	env := newTestEnv(t, Config{Provider: p})
	env.plant(t, cube.Pos{0, 64, 0}, testWheat)
	if err := env.farm.Close(); err != nil {
		t.Fatalf("close farm: %v", err)
	}
	if err := env.farm.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	for _, doc := range Documents {
		if _, err := os.Stat(p.Path(doc)); err != nil {
			t.Fatalf("expected %v document to be written: %v", doc, err)
		}
	}

	restored := newTestEnv(t, Config{Provider: p})
	if !restored.farm.Queued("world", cube.Pos{0, 64, 0}) {
		t.Fatalf("expected wheat to be queued after restart")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	env := newTestEnv(t, Config{Metrics: m})
	env.plant(t, cube.Pos{0, 64, 0}, testWheat)
	env.clock.Advance(time.Hour)
	env.farm.Tick()

	if got := m.Outcomes("world", OutcomeMatured); got != 1 {
		t.Fatalf("expected 1 matured outcome, got %d", got)
	}
	expected := `
# HELP alwaysfarm_ticks_total Tick passes run.
# TYPE alwaysfarm_ticks_total counter
alwaysfarm_ticks_total 1
`
	if err := testutil.CollectAndCompare(m, strings.NewReader(expected), "alwaysfarm_ticks_total"); err != nil {
		t.Fatalf("unexpected tick metrics: %v", err)
	}
	if got := testutil.CollectAndCount(m, "alwaysfarm_evaluations_total"); got != int(outcomeCount) {
		t.Fatalf("expected %d outcome series, got %d", outcomeCount, got)
	}

	var nilMetrics *Metrics
	nilMetrics.AddOutcome("world", OutcomeGrown)
	nilMetrics.ObserveTick(false, 0, 0)
	if nilMetrics.Outcomes("world", OutcomeGrown) != 0 {
		t.Fatalf("expected nil metrics to discard outcomes")
	}
}
