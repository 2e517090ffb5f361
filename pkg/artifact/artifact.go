package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Artifact is the immutable output of one pipeline stage.
type Artifact struct {
	Stage     string    `json:"stage"`
	Content   string    `json:"content"`
	Adapter   string    `json:"adapter"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"hash"`
}

// New creates an artifact and computes its content hash.
func New(content, adapter, model, prompt string) *Artifact {
	a := &Artifact{
		Content:   content,
		Adapter:   adapter,
		Model:     model,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
	}
	a.Hash = a.computeHash()
	return a
}

// ForStage returns a copy of the artifact attributed to the named stage.
func (a *Artifact) ForStage(stage string) *Artifact {
	out := *a
	out.Stage = stage
	return &out
}

// Len returns the content length in runes.
func (a *Artifact) Len() int {
	return len([]rune(a.Content))
}

// HashText returns the short content hash used for artifacts and prompts.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func (a *Artifact) computeHash() string {
	h := sha256.New()
	h.Write([]byte(a.Content))
	h.Write([]byte(a.Adapter))
	h.Write([]byte(a.Model))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
