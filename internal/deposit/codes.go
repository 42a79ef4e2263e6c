package deposit

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// PendingPayment is a user's active deposit reference.
type PendingPayment struct {
	Code      string    `json:"code"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p PendingPayment) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Codes holds at most one pending payment per user.
type Codes struct {
	mu     sync.Mutex
	byUser map[int64]PendingPayment
	byCode map[string]int64
	ttl    time.Duration
	now    func() time.Time
	rng    *rand.Rand
}

func NewCodes(ttl time.Duration, now func() time.Time) *Codes {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Codes{
		byUser: map[int64]PendingPayment{},
		byCode: map[string]int64{},
		ttl:    ttl,
		now:    now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// formatCode builds the 13-digit reference: user id, millisecond clock and a
// random tail.
func formatCode(userID int64, at time.Time, tail int) string {
	u := userID % 10000
	if u < 0 {
		u = -u
	}
	return fmt.Sprintf("%04d%06d%03d", u, at.UnixMilli()%1000000, tail)
}

// Issue replaces any previous code of the user.
func (c *Codes) Issue(userID int64) PendingPayment {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byUser[userID]; ok {
		delete(c.byCode, old.Code)
	}
	now := c.now()
	var code string
	for {
		code = formatCode(userID, now, 100+c.rng.Intn(900))
		if _, taken := c.byCode[code]; !taken {
			break
		}
	}
	p := PendingPayment{Code: code, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(c.ttl)}
	c.byUser[userID] = p
	c.byCode[code] = userID
	return p
}

// Lookup returns the user's code even when expired.
func (c *Codes) Lookup(userID int64) (PendingPayment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byUser[userID]
	return p, ok
}

// Active returns every unexpired code.
func (c *Codes) Active() []PendingPayment {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := make([]PendingPayment, 0, len(c.byUser))
	for _, p := range c.byUser {
		if !p.Expired(now) {
			out = append(out, p)
		}
	}
	return out
}

// Clear drops the user's code if it is still the given one.
func (c *Codes) Clear(userID int64, code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byUser[userID]
	if !ok || p.Code != code {
		return false
	}
	delete(c.byUser, userID)
	delete(c.byCode, code)
	return true
}

// Sweep evicts codes expired at now and reports how many were removed.
func (c *Codes) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for user, p := range c.byUser {
		if p.Expired(now) {
			delete(c.byUser, user)
			delete(c.byCode, p.Code)
			n++
		}
	}
	return n
}

func (c *Codes) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byUser)
}
