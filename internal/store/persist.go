package store

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/tidwall/gjson"

	"github.com/klppl/spider/internal/model"
)

// Save writes the store as a single JSON document (§6). Integers and the
// from_thread flag are emitted as proper JSON types — favor/related as
// numbers, from_thread as a bool — per the design note that the legacy
// stringly-typed encoding was accidental, not intentional.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	doc := s.buildDocumentLocked()
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		slog.Error("store: marshal checkpoint failed", "error", err)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("store: write checkpoint failed", "path", path, "error", err)
		return err
	}
	return nil
}

func (s *Store) buildDocumentLocked() model.Document {
	doc := model.Document{
		Instances: make([]string, 0, len(s.instances)),
		Users:     make([]model.DocumentUser, 0, len(s.users)),
		Toots:     make([]model.DocumentToot, 0, len(s.toots)),
		ToDo:      append([]string(nil), s.todo...),
	}
	for url := range s.instances {
		doc.Instances = append(doc.Instances, url)
	}
	for _, u := range s.users {
		du := model.DocumentUser{
			Instance: u.InstanceURL,
			Acct:     u.Acct,
			AcctID:   u.AcctID,
		}
		for k := range u.SeenBy {
			du.SeenBy = append(du.SeenBy, k)
		}
		doc.Users = append(doc.Users, du)
	}
	for _, t := range s.toots {
		doc.Toots = append(doc.Toots, model.DocumentToot{
			URI:           t.URI,
			Acct:          t.Acct,
			TootID:        t.TootID,
			SourceID:      t.SourceID,
			LocalInstance: t.LocalInstance,
			LocalID:       t.LocalID,
			FromThread:    t.FromThread,
			Favor:         t.Favor,
			Related:       t.Related,
		})
	}
	return doc
}

// Load reads a checkpoint file written by Save (or by a legacy encoder
// using stringly-typed integers/booleans) and repopulates the store.
// Missing top-level keys are tolerated. Unknown keys are ignored.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.LoadBytes(data)
}

// LoadBytes is Load's body, split out so tests can exercise it without a
// filesystem. Extraction of optional/stringly-typed fields goes through
// gjson rather than a second hand-rolled map[string]interface{} walk.
func (s *Store) LoadBytes(data []byte) error {
	if !gjson.ValidBytes(data) {
		slog.Warn("store: checkpoint is not valid JSON")
		return nil
	}
	root := gjson.ParseBytes(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	root.Get("instances").ForEach(func(_, v gjson.Result) bool {
		s.learnInstanceLocked(v.String())
		return true
	})

	root.Get("users").ForEach(func(_, v gjson.Result) bool {
		s.decodeUserLocked(v)
		return true
	})

	root.Get("toots").ForEach(func(_, v gjson.Result) bool {
		s.decodeTootLocked(v)
		return true
	})

	root.Get("toots_todo").ForEach(func(_, v gjson.Result) bool {
		uri := v.String()
		if _, ok := s.todoSet[uri]; !ok {
			s.todoSet[uri] = struct{}{}
			s.todo = append(s.todo, uri)
		}
		return true
	})

	return nil
}

func (s *Store) decodeUserLocked(v gjson.Result) {
	instance := v.Get("instance").String()
	acct := v.Get("acct").String()
	if instance == "" || acct == "" {
		slog.Warn("store: skipping malformed user record on load")
		return
	}
	acctID := v.Get("acct_id").String()
	u := s.learnAccountLocked(instance, acct, acctID)

	v.Get("seen_by").ForEach(func(_, sv gjson.Result) bool {
		key := sv.String()
		if key == "" || key == u.Key() {
			return true
		}
		if _, already := u.SeenBy[key]; !already {
			u.SeenBy[key] = struct{}{}
			s.nbSeenBy++
		}
		return true
	})
}

func (s *Store) decodeTootLocked(v gjson.Result) {
	uri := v.Get("uri").String()
	tootID := v.Get("toot_id").String()
	if uri == "" || tootID == "" {
		slog.Warn("store: skipping malformed toot record on load")
		return
	}
	if _, exists := s.toots[uri]; exists {
		return
	}

	t := &model.Toot{
		URI:           uri,
		TootID:        tootID,
		Acct:          v.Get("acct").String(),
		SourceID:      v.Get("source_id").String(),
		LocalInstance: v.Get("local_instance").String(),
		LocalID:       v.Get("local_id").String(),
		FromThread:    decodeLegacyBool(v.Get("from_thread")),
		Favor:         int(v.Get("favor").Int()),
		Related:       int(v.Get("related").Int()),
	}
	s.toots[uri] = t
}

// decodeLegacyBool accepts a real JSON bool, or the legacy literal string
// "True" ("from_thread":"True" when true, absent otherwise).
func decodeLegacyBool(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return v.String() == "True" || v.Bool()
	default:
		return false
	}
}
