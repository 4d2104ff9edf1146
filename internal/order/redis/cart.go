package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ramen-orders/internal/models"
)

const (
	// holdPrefix keys carry the TTL; their expiry event is the abandonment
	// signal.
	holdPrefix = "cart_hold:"
	// dataPrefix keys carry the snapshot payload with no TTL, since an
	// expired key's value is gone by the time the event arrives.
	dataPrefix = "cart_data:"
	unsubSet   = "cart_unsub"
)

// CartStore captures pre-checkout carts in Redis. A cart that is neither
// released (checkout completed) nor refreshed within the TTL triggers the
// abandoned-cart flow via keyspace expiry notifications.
type CartStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{Client: client, TTL: ttl}
}

// Capture stores the cart snapshot and arms the expiry timer. Re-capturing
// the same cart refreshes both.
func (s *CartStore) Capture(ctx context.Context, cart models.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, dataPrefix+cart.CartID, payload, 0).Err(); err != nil {
		return err
	}
	return s.Client.Set(ctx, holdPrefix+cart.CartID, cart.Email, s.TTL).Err()
}

// Release drops both keys; called when checkout completes.
func (s *CartStore) Release(ctx context.Context, cartID string) error {
	return s.Client.Del(ctx, holdPrefix+cartID, dataPrefix+cartID).Err()
}

// Get loads the snapshot for a cart id. Returns redis.Nil error when absent.
func (s *CartStore) Get(ctx context.Context, cartID string) (*models.Cart, error) {
	payload, err := s.Client.Get(ctx, dataPrefix+cartID).Result()
	if err != nil {
		return nil, err
	}
	var cart models.Cart
	if err := json.Unmarshal([]byte(payload), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// Unsubscribe opts an email address out of cart reminders.
func (s *CartStore) Unsubscribe(ctx context.Context, email string) error {
	return s.Client.SAdd(ctx, unsubSet, email).Err()
}

func (s *CartStore) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	return s.Client.SIsMember(ctx, unsubSet, email).Result()
}

// HoldKeyCartID extracts the cart id from an expired hold key, or "" when
// the key is not a cart hold.
func HoldKeyCartID(key string) string {
	if len(key) > len(holdPrefix) && key[:len(holdPrefix)] == holdPrefix {
		return key[len(holdPrefix):]
	}
	return ""
}
