// Package bolt is an embedded bbolt backend for the monitor store. It serves
// single-node deployments that keep website probing out of the SQL database.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/store"
)

const (
	bucketWebsites = "websites"
	bucketURLIndex = "website_urls"
	bucketChecks   = "website_checks"
)

// Store wraps a bbolt database holding websites and their check history.
type Store struct {
	db *bbolt.DB
}

var _ store.MonitorStore = (*Store)(nil)

// record is the persisted form of a website; lease fields are not part of
// the public JSON shape so they are carried alongside.
type record struct {
	Website      *model.Website `json:"website"`
	ClaimedBy    string         `json:"claimedBy,omitempty"`
	ClaimExpires *time.Time     `json:"claimExpires,omitempty"`
}

// Open opens the database at path and initializes the buckets.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure bolt dir: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketWebsites, bucketURLIndex, bucketChecks} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func urlKey(owner, url string) []byte {
	return []byte(owner + "\x00" + url)
}

// checkKey orders checks chronologically inside a website's bucket.
func checkKey(at time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(at.UnixNano()))
	return append(k, id...)
}

func getRecord(tx *bbolt.Tx, id string) (*record, error) {
	data := tx.Bucket([]byte(bucketWebsites)).Get([]byte(id))
	if data == nil {
		return nil, store.ErrNotFound
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode website %s: %w", id, err)
	}
	r.Website.ClaimedBy = r.ClaimedBy
	r.Website.ClaimExpires = r.ClaimExpires
	return &r, nil
}

func putRecord(tx *bbolt.Tx, w *model.Website) error {
	data, err := json.Marshal(record{Website: w, ClaimedBy: w.ClaimedBy, ClaimExpires: w.ClaimExpires})
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketWebsites)).Put([]byte(w.ID), data)
}

func (s *Store) CreateWebsite(_ context.Context, w *model.Website) error {
	if _, err := w.Interval.Duration(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket([]byte(bucketURLIndex))
		key := urlKey(w.OwnerID, w.URL)
		if idx.Get(key) != nil {
			return store.ErrDuplicate
		}
		if err := idx.Put(key, []byte(w.ID)); err != nil {
			return err
		}
		return putRecord(tx, w)
	})
}

func (s *Store) GetWebsite(_ context.Context, id string) (*model.Website, error) {
	var w *model.Website
	err := s.db.View(func(tx *bbolt.Tx) error {
		r, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		w = r.Website
		return nil
	})
	return w, err
}

func (s *Store) ListWebsites(_ context.Context, ownerID string) ([]*model.Website, error) {
	sites, err := s.all(func(w *model.Website) bool { return w.OwnerID == ownerID })
	if err != nil {
		return nil, err
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].CreatedAt.After(sites[j].CreatedAt)
	})
	return sites, nil
}

func (s *Store) SetWebsiteActive(_ context.Context, id string, active bool, at time.Time) error {
	return s.update(id, func(w *model.Website) error {
		w.IsActive = active
		w.UpdatedAt = at
		return nil
	})
}

func (s *Store) DeleteWebsite(_ context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		r, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketURLIndex)).Delete(urlKey(r.Website.OwnerID, r.Website.URL)); err != nil {
			return err
		}
		checks := tx.Bucket([]byte(bucketChecks))
		if checks.Bucket([]byte(id)) != nil {
			if err := checks.DeleteBucket([]byte(id)); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(bucketWebsites)).Delete([]byte(id))
	})
}

func (s *Store) ListDueWebsites(_ context.Context, now time.Time, limit int) ([]*model.Website, error) {
	due, err := s.all(func(w *model.Website) bool { return w.IsDue(now) && !leased(w, now) })
	if err != nil {
		return nil, err
	}
	sort.Slice(due, func(i, j int) bool {
		return lastCheckOrZero(due[i]).Before(lastCheckOrZero(due[j]))
	})
	if limit <= 0 {
		limit = 100
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ClaimWebsite(_ context.Context, id, owner string, now, until time.Time) (bool, error) {
	claimed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		r, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		w := r.Website
		if !w.IsDue(now) || leased(w, now) {
			return nil
		}
		w.ClaimedBy = owner
		w.ClaimExpires = &until
		claimed = true
		return putRecord(tx, w)
	})
	if err == store.ErrNotFound {
		return false, nil
	}
	return claimed, err
}

func (s *Store) ReleaseWebsite(_ context.Context, id, owner string) error {
	err := s.update(id, func(w *model.Website) error {
		if w.ClaimedBy == owner {
			w.ClaimedBy = ""
			w.ClaimExpires = nil
		}
		return nil
	})
	if err == store.ErrNotFound {
		return nil
	}
	return err
}

func (s *Store) RecordCheck(_ context.Context, c *model.WebsiteCheck, window int) (*store.CheckOutcome, error) {
	if window <= 0 {
		window = 100
	}
	var out *store.CheckOutcome
	err := s.db.Update(func(tx *bbolt.Tx) error {
		r, err := getRecord(tx, c.WebsiteID)
		if err != nil {
			return err
		}
		w := r.Website
		out = &store.CheckOutcome{PreviousStatus: w.Status, FirstCheck: w.TotalChecks == 0}

		b, err := tx.Bucket([]byte(bucketChecks)).CreateBucketIfNotExists([]byte(w.ID))
		if err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := b.Put(checkKey(c.CheckedAt, c.ID), data); err != nil {
			return err
		}

		store.ApplyCheck(w, c)

		statuses := make([]model.WebsiteStatus, 0, window)
		cur := b.Cursor()
		for k, v := cur.Last(); k != nil && len(statuses) < window; k, v = cur.Prev() {
			var prev model.WebsiteCheck
			if err := json.Unmarshal(v, &prev); err != nil {
				return err
			}
			statuses = append(statuses, prev.Status)
		}
		w.Uptime = store.Uptime(statuses)

		out.Website = w
		return putRecord(tx, w)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListChecks(_ context.Context, websiteID string, limit int) ([]*model.WebsiteCheck, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*model.WebsiteCheck
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketChecks)).Bucket([]byte(websiteID))
		if b == nil {
			return nil
		}
		cur := b.Cursor()
		for k, v := cur.Last(); k != nil && len(out) < limit; k, v = cur.Prev() {
			var c model.WebsiteCheck
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}

func (s *Store) update(id string, fn func(*model.Website) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		r, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		if err := fn(r.Website); err != nil {
			return err
		}
		return putRecord(tx, r.Website)
	})
}

func (s *Store) all(keep func(*model.Website) bool) ([]*model.Website, error) {
	var out []*model.Website
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketWebsites)).ForEach(func(k, _ []byte) error {
			r, err := getRecord(tx, string(k))
			if err != nil {
				return err
			}
			if keep(r.Website) {
				out = append(out, r.Website)
			}
			return nil
		})
	})
	return out, err
}

func leased(w *model.Website, now time.Time) bool {
	return w.ClaimExpires != nil && w.ClaimExpires.After(now)
}

func lastCheckOrZero(w *model.Website) time.Time {
	if w.LastCheck == nil {
		return time.Time{}
	}
	return *w.LastCheck
}
