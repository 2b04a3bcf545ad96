// Package scrambler generates fresh, collision-free JavaScript identifiers for the
// declarations injected by the obfuscator.
package scrambler

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/whit3rabbit/jsmixer/internal/config"
)

const (
	firstCharsIdentifier = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	allCharsIdentifier   = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_$"

	maxIdentifierLen = 16
	minScrambleLen   = 2
	maxRegenAttempts = 50
)

// Scrambler hands out identifiers that do not collide with any name already in
// use in the program or previously generated.
type Scrambler struct {
	mode          NamingMode
	targetLength  int
	currentLength int
	rnd           *mrand.Rand

	used    map[string]bool
	counter map[string]int // base name -> next numeric suffix

	mu sync.Mutex
}

// NewScrambler creates a scrambler for the given naming settings. rnd is used by
// the random mode and must not be shared with another goroutine.
func NewScrambler(cfg config.NamingConfig, rnd *mrand.Rand) (*Scrambler, error) {
	s := &Scrambler{
		mode:    NamingMode(strings.ToLower(cfg.Mode)),
		rnd:     rnd,
		used:    make(map[string]bool),
		counter: make(map[string]int),
	}
	switch s.mode {
	case "":
		s.mode = ModeSequential
	case ModeSequential, ModeRandom:
	default:
		return nil, fmt.Errorf("unknown naming mode: %q", cfg.Mode)
	}
	if s.rnd == nil {
		s.rnd = NewRand(0)
	}

	s.targetLength = cfg.Length
	if s.targetLength < minScrambleLen {
		s.targetLength = minScrambleLen
	}
	if s.targetLength > maxIdentifierLen {
		s.targetLength = maxIdentifierLen
	}
	s.currentLength = s.targetLength
	return s, nil
}

// Reserve marks names as taken.
func (s *Scrambler) Reserve(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.used[name] = true
	}
}

// IsUsed reports whether name is reserved or was already generated.
func (s *Scrambler) IsUsed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[name]
}

// Generate returns a fresh identifier. In sequential mode the hint becomes the
// base of the name (`a` yields `_a`, then `_a2`, `_a3`, ...).
func (s *Scrambler) Generate(hint string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeRandom {
		for attempt := 0; attempt < maxRegenAttempts; attempt++ {
			name := s.generateScrambledName()
			if IsReserved(name) || s.used[name] {
				if attempt > 5 && s.currentLength < maxIdentifierLen {
					s.currentLength++
				}
				continue
			}
			s.used[name] = true
			return name
		}
		// fall through to the sequential scheme, which cannot fail
	}
	return s.generateSequentialName(hint)
}

func (s *Scrambler) generateSequentialName(hint string) string {
	base := "_" + toIdentifier(hint)
	i := s.counter[base]
	for {
		i++
		name := base
		if i > 1 {
			name += strconv.Itoa(i)
		}
		if !s.used[name] && !IsReserved(name) {
			s.counter[base] = i
			s.used[name] = true
			return name
		}
	}
}

func (s *Scrambler) generateScrambledName() string {
	sb := strings.Builder{}
	sb.Grow(s.currentLength)
	sb.WriteByte(firstCharsIdentifier[s.rnd.Intn(len(firstCharsIdentifier))])
	for i := 1; i < s.currentLength; i++ {
		sb.WriteByte(allCharsIdentifier[s.rnd.Intn(len(allCharsIdentifier))])
	}
	return sb.String()
}

// toIdentifier strips a hint down to identifier characters without leading
// underscores or trailing digits, the same way babel derives uid bases.
func toIdentifier(hint string) string {
	var sb strings.Builder
	for _, r := range hint {
		if r == '_' || r == '$' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			sb.WriteRune(r)
		}
	}
	name := strings.TrimLeft(sb.String(), "_")
	name = strings.TrimRight(name, "0123456789")
	if name == "" {
		return "temp"
	}
	return name
}

// NewRand returns a pseudo random source. A zero seed draws the seed from
// crypto/rand so unseeded runs are not reproducible.
func NewRand(seed int64) *mrand.Rand {
	if seed == 0 {
		seed = randSeed()
	}
	return mrand.New(mrand.NewSource(seed))
}

func randSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
}
