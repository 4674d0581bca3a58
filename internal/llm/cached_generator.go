package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// CachedGenerator wraps a ChatGenerator to cache responses in a JSON file,
// keyed by a hash of both prompts. Useful for evals and local runs where the
// same stage inputs repeat.
type CachedGenerator struct {
	realGen       ChatGenerator
	cache         map[string]ContentResponse
	cacheFilePath string
	dirty         bool
	mu            sync.Mutex
}

// NewCachedGenerator creates a new CachedGenerator and loads any existing cache file.
func NewCachedGenerator(realGen ChatGenerator, cacheFilePath string) (*CachedGenerator, error) {
	c := &CachedGenerator{
		realGen:       realGen,
		cache:         make(map[string]ContentResponse),
		cacheFilePath: cacheFilePath,
	}

	cacheDir := filepath.Dir(cacheFilePath)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	data, err := os.ReadFile(cacheFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("LLM cache not found, starting empty: %s", cacheFilePath)
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", cacheFilePath, err)
	}

	if err := json.Unmarshal(data, &c.cache); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data from %s: %w", cacheFilePath, err)
	}

	log.Printf("Loaded %d LLM responses from cache: %s", len(c.cache), cacheFilePath)
	return c, nil
}

// Generate returns the cached response when both prompts were seen before,
// otherwise it calls the real generator and remembers the answer.
func (c *CachedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (ContentResponse, error) {
	key := cacheKey(systemPrompt, userPrompt)

	c.mu.Lock()
	if resp, ok := c.cache[key]; ok {
		c.mu.Unlock()
		resp.Cached = true
		return resp, nil
	}
	c.mu.Unlock()

	// The lock is not held across the network call; two concurrent misses for
	// the same key both reach the provider and the last answer wins.
	resp, err := c.realGen.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content using real generator: %w", err)
	}

	c.mu.Lock()
	c.cache[key] = resp
	c.dirty = true
	c.mu.Unlock()

	return resp, nil
}

// SaveCache persists the in-memory cache to the file system.
func (c *CachedGenerator) SaveCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := os.WriteFile(c.cacheFilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.cacheFilePath, err)
	}

	c.dirty = false
	log.Printf("Saved %d LLM responses to cache: %s", len(c.cache), c.cacheFilePath)
	return nil
}

func cacheKey(systemPrompt, userPrompt string) string {
	sum := sha256.Sum256([]byte(systemPrompt + "\x00" + userPrompt))
	return hex.EncodeToString(sum[:])
}
