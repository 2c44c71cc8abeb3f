package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"delivery/internal/model"
	"delivery/internal/storage"
)

type failingStore struct {
	storage.Store
	failPut bool
}

func (f *failingStore) Put(entries map[string]string) error {
	if f.failPut {
		return errors.New("disk full")
	}
	return f.Store.Put(entries)
}

func TestSetCredentialsThenRestore_ReproducesSession(t *testing.T) {
	backend := storage.NewInMemoryStore()
	s := New(backend)
	id := model.Identity{Name: "Pizzaria Bella", Role: model.RoleBusiness}
	if err := s.SetCredentials(id, "tok-1"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}

	// simulate reload: new store over the same medium
	reloaded := New(backend)
	reloaded.Restore()
	if !reloaded.IsAuthenticated() {
		t.Fatalf("reloaded session should be authenticated")
	}
	got, ok := reloaded.Identity()
	if !ok || got != id {
		t.Fatalf("identity: got %+v ok=%v want %+v", got, ok, id)
	}
	if reloaded.Token() != "tok-1" {
		t.Fatalf("token: got %q", reloaded.Token())
	}
}

func TestRestore_CorruptedIdentityIsDiscarded(t *testing.T) {
	for _, raw := range []string{"undefined", "{not json", `{"nome":"x","tipo":"ADMIN"}`, ""} {
		backend := storage.NewInMemoryStore()
		_ = backend.Put(map[string]string{KeyUser: raw, KeyToken: "tok"})

		s := New(backend)
		s.Restore()
		if s.IsAuthenticated() {
			t.Fatalf("raw=%q: should be unauthenticated", raw)
		}
		if _, ok := s.Identity(); ok {
			t.Fatalf("raw=%q: identity should be absent", raw)
		}
		if _, ok, _ := backend.Get(KeyUser); ok {
			t.Fatalf("raw=%q: corrupted user entry should be removed", raw)
		}
		if _, ok, _ := backend.Get(KeyToken); ok {
			t.Fatalf("raw=%q: orphan token should be removed", raw)
		}
	}
}

func TestRestore_EmptyStorage(t *testing.T) {
	s := New(storage.NewInMemoryStore())
	s.Restore()
	if s.IsAuthenticated() {
		t.Fatalf("empty storage should restore unauthenticated")
	}
}

func TestRestore_TokenWithoutUser(t *testing.T) {
	backend := storage.NewInMemoryStore()
	_ = backend.Put(map[string]string{KeyToken: "tok"})
	s := New(backend)
	s.Restore()
	if s.IsAuthenticated() {
		t.Fatalf("token without identity should not authenticate")
	}
	if backend.Len() != 0 {
		t.Fatalf("partial session should be cleared, len=%d", backend.Len())
	}
}

func TestLogout_ClearsMemoryAndStorage(t *testing.T) {
	backend := storage.NewInMemoryStore()
	s := New(backend)
	_ = s.SetCredentials(model.Identity{Name: "Ana", Role: model.RoleCustomer}, "tok")

	s.Logout()
	if s.IsAuthenticated() || s.Token() != "" {
		t.Fatalf("logout should clear token")
	}
	if backend.Len() != 0 {
		t.Fatalf("storage should be empty, len=%d", backend.Len())
	}
}

func TestSetCredentials_StorageFailureLeavesStateUntouched(t *testing.T) {
	backend := &failingStore{Store: storage.NewInMemoryStore(), failPut: true}
	s := New(backend)
	if err := s.SetCredentials(model.Identity{Name: "Ana", Role: model.RoleCustomer}, "tok"); err == nil {
		t.Fatalf("expected error")
	}
	if s.IsAuthenticated() {
		t.Fatalf("failed persist must not authenticate")
	}
}

func TestSubscribe_NotifiesTransitions(t *testing.T) {
	s := New(storage.NewInMemoryStore())
	var got []bool
	unsub := s.Subscribe(func(st State) { got = append(got, st.Authenticated) })

	_ = s.SetCredentials(model.Identity{Name: "Ana", Role: model.RoleCustomer}, "tok")
	s.Logout()
	s.Logout() // already logged out: silent

	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("notifications: %v", got)
	}

	unsub()
	_ = s.SetCredentials(model.Identity{Name: "Ana", Role: model.RoleCustomer}, "tok")
	if len(got) != 2 {
		t.Fatalf("unsubscribed listener was called: %v", got)
	}
}

func TestLogout_ConcurrentCallsNotifyOnce(t *testing.T) {
	s := New(storage.NewInMemoryStore())
	_ = s.SetCredentials(model.Identity{Name: "Ana", Role: model.RoleCustomer}, "tok")

	var calls int32
	s.Subscribe(func(st State) {
		if !st.Authenticated {
			atomic.AddInt32(&calls, 1)
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Logout()
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("logout notifications=%d want=1", n)
	}
}

func TestLogoutIfToken_OnlyEndsMatchingSession(t *testing.T) {
	backend := storage.NewInMemoryStore()
	s := New(backend)
	if err := s.SetCredentials(model.Identity{Name: "Ana", Role: model.RoleCustomer}, "tok-new"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	var notified int
	s.Subscribe(func(State) { notified++ })

	if s.LogoutIfToken("tok-old") {
		t.Fatalf("stale token logged the session out")
	}
	if !s.IsAuthenticated() || notified != 0 {
		t.Fatalf("authenticated=%v notified=%d", s.IsAuthenticated(), notified)
	}
	if !s.LogoutIfToken("tok-new") {
		t.Fatalf("current token did not log out")
	}
	if s.IsAuthenticated() || notified != 1 {
		t.Fatalf("authenticated=%v notified=%d", s.IsAuthenticated(), notified)
	}
	if _, ok, _ := backend.Get(KeyToken); ok {
		t.Fatalf("token still stored")
	}
}
