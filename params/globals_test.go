package params

import (
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Config.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	c := Config
	c.EmbeddingSize = 0
	c.LearningRate = -1
	c.MaxVocab = 4
	err := c.Validate()
	if err == nil {
		t.Fatal("want error")
	}
	for _, want := range []string{"embedding size", "learning rate", "max vocab"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
