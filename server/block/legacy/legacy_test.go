package legacy

import (
	"encoding/json"
	"testing"

	"github.com/dm-vev/alwaysfarm/server/world/farm"
)

func TestLookup(t *testing.T) {
	var c Catalog
	for name := range farm.DefaultRates {
		if _, ok := c.Lookup(name); !ok {
			t.Fatalf("expected default block %s to resolve", name)
		}
	}
	if id, ok := c.Lookup("CARROTS"); !ok || id != Carrot {
		t.Fatalf("expected CARROTS to resolve to %d, got %d", Carrot, id)
	}
	if id, ok := c.Lookup("86"); !ok || id != Pumpkin {
		t.Fatalf("expected numeric id 86 to resolve to pumpkin, got %d", id)
	}
	for _, name := range []string{"wheat_block", "999", "", "SAND"} {
		if _, ok := c.Lookup(name); ok {
			t.Fatalf("expected %q not to resolve", name)
		}
	}
}

func TestDefaultRatesCoverSixTypes(t *testing.T) {
	r := farm.LoadRates(map[string]json.RawMessage{}, Catalog{})
	if r.Len() != 6 {
		t.Fatalf("expected 6 distinct tracked ids, got %d", r.Len())
	}
	for _, id := range []farm.BlockType{Wheat, Carrot, Potato, Beetroot, PumpkinStem, MelonStem} {
		if !r.Tracked(id) {
			t.Fatalf("expected %s to be tracked", Name(id))
		}
	}
}

func TestFruitAndSoil(t *testing.T) {
	var c Catalog
	if f, ok := c.Fruit(PumpkinStem); !ok || f != Pumpkin {
		t.Fatalf("expected pumpkin stem to grow pumpkins, got %d", f)
	}
	if f, ok := c.Fruit(MelonStem); !ok || f != Melon {
		t.Fatalf("expected melon stem to grow melons, got %d", f)
	}
	if _, ok := c.Fruit(Wheat); ok {
		t.Fatalf("expected wheat not to be a stem")
	}
	if !c.Soil(Farmland) || !c.Soil(Grass) || !c.Soil(Dirt) || c.Soil(Stone) {
		t.Fatalf("expected farmland, grass and dirt to be the only soils")
	}
}

func TestPack(t *testing.T) {
	b := farm.Block{Type: Beetroot, Meta: 5}
	if got := Unpack(Pack(b)); got != b {
		t.Fatalf("expected %+v, got %+v", b, got)
	}
	if got := Pack(farm.Block{Type: Dirt}); got != 3<<4 {
		t.Fatalf("expected dirt state %d, got %d", 3<<4, got)
	}
}

func TestName(t *testing.T) {
	if Name(Carrot) != "CARROTS" || Name(77) != "77" {
		t.Fatalf("unexpected names %s and %s", Name(Carrot), Name(77))
	}
}
