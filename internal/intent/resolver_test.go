package intent_test

import (
	"errors"
	"sync"
	"testing"

	"tailor/internal/intent"
	"tailor/internal/services"
	"tailor/internal/transform"
)

func newDefault(t *testing.T) *intent.Resolver {
	t.Helper()
	r, err := intent.NewDefault(transform.Default())
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}
	return r
}

func TestEveryTriggerResolvesToItsOperation(t *testing.T) {
	r := newDefault(t)
	for _, trig := range intent.DefaultTriggers() {
		got, ok := r.Resolve(trig.Phrase)
		if !ok || got != trig.Operation {
			t.Fatalf("Resolve(%q) = %q, %v; want %q", trig.Phrase, got, ok, trig.Operation)
		}
	}
}

func TestLongestPhraseWinsOverShorterSubstring(t *testing.T) {
	reg := transform.Default()
	r, err := intent.NewResolver(reg, []intent.Trigger{
		{Phrase: "black", Operation: transform.OpBlur},
		{Phrase: "black and white", Operation: transform.OpBW},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	trig, ok := r.Match("black and white footage")
	if !ok || trig.Phrase != "black and white" || trig.Operation != transform.OpBW {
		t.Fatalf("unexpected match %+v %v", trig, ok)
	}
	if got, _ := r.Resolve("a black screen"); got != transform.OpBlur {
		t.Fatalf("expected short phrase alone to resolve, got %q", got)
	}
}

func TestLongestPhraseWinsRegardlessOfPosition(t *testing.T) {
	r := newDefault(t)
	// "rotate" appears first but "slow motion" is longer.
	got, ok := r.Resolve("rotate it then slow motion")
	if !ok || got != transform.OpSlow {
		t.Fatalf("expected slow, got %q %v", got, ok)
	}
}

func TestEqualLengthTiesKeepInsertionOrder(t *testing.T) {
	reg := transform.Default()
	r, err := intent.NewResolver(reg, []intent.Trigger{
		{Phrase: "flip", Operation: transform.OpRotate},
		{Phrase: "blur", Operation: transform.OpBlur},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if got, _ := r.Resolve("blur and flip"); got != transform.OpRotate {
		t.Fatalf("expected first inserted phrase to win tie, got %q", got)
	}
}

func TestUnresolvedInputs(t *testing.T) {
	r := newDefault(t)
	for _, text := range []string{"", "   ", "xyzzy unrelated text"} {
		if got, ok := r.Resolve(text); ok {
			t.Fatalf("Resolve(%q) unexpectedly matched %q", text, got)
		}
	}
}

func TestNormalizationIsCaseInsensitive(t *testing.T) {
	r := newDefault(t)
	got, ok := r.Resolve("  Please SPEED UP this 2X  ")
	if !ok || got != transform.OpSpeed {
		t.Fatalf("expected speed, got %q %v", got, ok)
	}
}

func TestScenarioSpeedUp2x(t *testing.T) {
	r := newDefault(t)
	trig, ok := r.Match("speed up 2x")
	if !ok || trig.Phrase != "speed up" || trig.Operation != transform.OpSpeed {
		t.Fatalf("unexpected match %+v %v", trig, ok)
	}
}

func TestNewResolverRejectsBadTables(t *testing.T) {
	reg := transform.Default()
	cases := map[string][]intent.Trigger{
		"unknown op": {{Phrase: "sepia", Operation: "sepia"}},
		"empty":      {{Phrase: "  ", Operation: transform.OpTrim}},
		"duplicate":  {{Phrase: "cut", Operation: transform.OpTrim}, {Phrase: "CUT", Operation: transform.OpBlur}},
	}
	for name, table := range cases {
		if _, err := intent.NewResolver(reg, table); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestTriggersOrderedByLength(t *testing.T) {
	r := newDefault(t)
	triggers := r.Triggers()
	for i := 1; i < len(triggers); i++ {
		if len([]rune(triggers[i-1].Phrase)) < len([]rune(triggers[i].Phrase)) {
			t.Fatalf("triggers out of order at %d: %q before %q", i, triggers[i-1].Phrase, triggers[i].Phrase)
		}
	}
	if phrases := r.PhrasesFor(transform.OpBW); len(phrases) == 0 || phrases[0] != "black and white" {
		t.Fatalf("unexpected bw phrases %v", phrases)
	}
}

func TestResolveConcurrentUse(t *testing.T) {
	r := newDefault(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got, _ := r.Resolve("make it black and white"); got != transform.OpBW {
					t.Errorf("unexpected %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestTriggersDoNotMatchInsideOrdinaryWords(t *testing.T) {
	r := newDefault(t)
	for _, text := range []string{"please execute it", "use a shortcut", "xyzzy unrelated text", ""} {
		if got, ok := r.Resolve(text); ok {
			t.Fatalf("Resolve(%q) = %q; want unresolved", text, got)
		}
	}
	if got, _ := r.Resolve("cut it down to the best part"); got != transform.OpTrim {
		t.Fatalf("expected trim, got %q", got)
	}
}
