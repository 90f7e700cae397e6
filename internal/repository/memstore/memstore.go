// Package memstore is an in-memory ledger store. A unit of work holds a
// single writer lock and is rolled back by restoring a snapshot, which
// mirrors the atomicity of the PostgreSQL store closely enough for service
// tests and local demos.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"player-auction-bot/internal/model"
	"player-auction-bot/internal/repository"
)

const lockRetry = time.Millisecond

type state struct {
	seq      int64
	sessions map[int64]model.AuctionSession
	players  map[int64]model.Player
	teams    map[int64]model.Team
	paddles  map[int64]model.PaddleRaise
	bids     []model.Bid
	sales    []model.SaleRecord
}

func newState() state {
	return state{
		sessions: make(map[int64]model.AuctionSession),
		players:  make(map[int64]model.Player),
		teams:    make(map[int64]model.Team),
		paddles:  make(map[int64]model.PaddleRaise),
	}
}

func (s *state) clone() state {
	c := state{
		seq:      s.seq,
		sessions: make(map[int64]model.AuctionSession, len(s.sessions)),
		players:  make(map[int64]model.Player, len(s.players)),
		teams:    make(map[int64]model.Team, len(s.teams)),
		paddles:  make(map[int64]model.PaddleRaise, len(s.paddles)),
		bids:     append([]model.Bid(nil), s.bids...),
		sales:    append([]model.SaleRecord(nil), s.sales...),
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.paddles {
		c.paddles[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store implements repository.Store in memory.
type Store struct {
	mu     sync.RWMutex
	data   state
	now    func() time.Time
	faults map[string]error
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: newState(), now: time.Now, faults: make(map[string]error)}
}

// InjectFault makes the named Tx method fail with err until cleared with a
// nil err. It is used to prove that failed units of work leave no trace.
func (s *Store) InjectFault(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *Store) acquire(ctx context.Context, opts repository.TxOptions) error {
	if opts.NoWait {
		if !s.mu.TryLock() {
			return repository.ErrLockNotAvailable
		}
		return nil
	}
	if opts.LockTimeout <= 0 {
		s.mu.Lock()
		return nil
	}

	deadline := time.Now().Add(opts.LockTimeout)
	for !s.mu.TryLock() {
		if time.Now().After(deadline) {
			return repository.ErrLockNotAvailable
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetry):
		}
	}
	return nil
}

// Atomic runs fn under the writer lock and restores the previous state if
// fn fails or panics.
func (s *Store) Atomic(ctx context.Context, opts repository.TxOptions, fn func(tx repository.Tx) error) (err error) {
	if err := s.acquire(ctx, opts); err != nil {
		return err
	}
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(&tx{s: s}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) standing(t model.Team) *model.TeamStanding {
	regular := 0
	for _, p := range s.data.players {
		if p.TeamID != nil && *p.TeamID == t.ID && !p.IsIconic {
			regular++
		}
	}
	return &model.TeamStanding{Team: t, RegularPlayers: regular}
}

// GetSession retrieves an auction session by ID.
func (s *Store) GetSession(_ context.Context, id int64) (*model.AuctionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

// LiveSession returns the live session.
func (s *Store) LiveSession(_ context.Context) (*model.AuctionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.data.sessions {
		if v.Status == model.SessionLive {
			v := v
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(_ context.Context) ([]*model.AuctionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.AuctionSession, 0, len(s.data.sessions))
	for _, v := range s.data.sessions {
		v := v
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// GetPlayer retrieves a player by ID.
func (s *Store) GetPlayer(_ context.Context, id int64) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.players[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

// ListPlayers returns players with the given status ordered by name.
func (s *Store) ListPlayers(_ context.Context, status model.PlayerStatus) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Player
	for _, v := range s.data.players {
		if status == "" || v.Status == status {
			v := v
			out = append(out, &v)
		}
	}
	sortPlayers(out)
	return out, nil
}

func sortPlayers(ps []*model.Player) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

// GetTeam retrieves a team and its roster size.
func (s *Store) GetTeam(_ context.Context, id int64) (*model.TeamStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.teams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.standing(v), nil
}

// TeamByOwner retrieves the team owned by a user.
func (s *Store) TeamByOwner(_ context.Context, ownerID int64) (*model.TeamStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.data.teams {
		if v.OwnerID == ownerID {
			return s.standing(v), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListTeams returns every team ordered by name.
func (s *Store) ListTeams(_ context.Context) ([]*model.TeamStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTeams(), nil
}

func (s *Store) listTeams() []*model.TeamStanding {
	out := make([]*model.TeamStanding, 0, len(s.data.teams))
	for _, v := range s.data.teams {
		out = append(out, s.standing(v))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TeamPlayers returns a team's roster, iconic players first.
func (s *Store) TeamPlayers(_ context.Context, teamID int64) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var iconic, regular []*model.Player
	for _, v := range s.data.players {
		if v.TeamID == nil || *v.TeamID != teamID {
			continue
		}
		v := v
		if v.IsIconic {
			iconic = append(iconic, &v)
		} else {
			regular = append(regular, &v)
		}
	}
	sortPlayers(iconic)
	sortPlayers(regular)
	return append(iconic, regular...), nil
}

// RecentBids returns the latest bids on a player in a session, newest first.
func (s *Store) RecentBids(_ context.Context, sessionID, playerID int64, limit int) ([]*model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Bid
	for i := len(s.data.bids) - 1; i >= 0 && len(out) < limit; i-- {
		b := s.data.bids[i]
		if b.SessionID == sessionID && b.PlayerID == playerID {
			out = append(out, &b)
		}
	}
	return out, nil
}

// PendingPaddles lists unacknowledged paddle raises, oldest first.
func (s *Store) PendingPaddles(_ context.Context, sessionID int64) ([]*model.PaddleRaise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.PaddleRaise
	for _, p := range s.data.paddles {
		if p.SessionID == sessionID && !p.Acknowledged {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecentSales returns the latest settlements of a session, newest first.
func (s *Store) RecentSales(_ context.Context, sessionID int64, limit int) ([]*model.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.SaleRecord
	for i := len(s.data.sales) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.data.sales[i]
		if r.SessionID == sessionID {
			out = append(out, &r)
		}
	}
	return out, nil
}

// tx implements repository.Tx. The writer lock is already held, so row
// locks are implicit.
type tx struct {
	s *Store
}

func (t *tx) fault(method string) error {
	if err, ok := t.s.faults[method]; ok {
		return fmt.Errorf("memstore %s: %w", method, err)
	}
	return nil
}

func (t *tx) LockSession(_ context.Context, id int64) (*model.AuctionSession, error) {
	if err := t.fault("LockSession"); err != nil {
		return nil, err
	}
	v, ok := t.s.data.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (t *tx) LockLiveSessions(_ context.Context) ([]*model.AuctionSession, error) {
	var out []*model.AuctionSession
	for _, v := range t.s.data.sessions {
		if v.Status == model.SessionLive {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) LockPlayer(_ context.Context, id int64) (*model.Player, error) {
	if err := t.fault("LockPlayer"); err != nil {
		return nil, err
	}
	v, ok := t.s.data.players[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (t *tx) LockTeam(_ context.Context, id int64) (*model.TeamStanding, error) {
	if err := t.fault("LockTeam"); err != nil {
		return nil, err
	}
	v, ok := t.s.data.teams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.s.standing(v), nil
}

func (t *tx) LockPaddle(_ context.Context, id int64) (*model.PaddleRaise, error) {
	v, ok := t.s.data.paddles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (t *tx) HighestBid(_ context.Context, sessionID, playerID int64) (*model.Bid, error) {
	var best *model.Bid
	for i := range t.s.data.bids {
		b := t.s.data.bids[i]
		if b.SessionID != sessionID || b.PlayerID != playerID {
			continue
		}
		if best == nil || b.Amount >= best.Amount {
			best = &b
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (t *tx) LatestSale(_ context.Context, playerID int64) (*model.SaleRecord, error) {
	for i := len(t.s.data.sales) - 1; i >= 0; i-- {
		r := t.s.data.sales[i]
		if r.PlayerID == playerID {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) SaleExists(_ context.Context, sessionID, playerID int64) (bool, error) {
	for _, r := range t.s.data.sales {
		if r.SessionID == sessionID && r.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) SessionHoldingPlayer(_ context.Context, playerID int64) (*model.AuctionSession, error) {
	for _, v := range t.s.data.sessions {
		if v.HasCurrentPlayer(playerID) {
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) ListTeams(_ context.Context) ([]*model.TeamStanding, error) {
	return t.s.listTeams(), nil
}

func (t *tx) CreateSession(_ context.Context, name string) (*model.AuctionSession, error) {
	now := t.s.now()
	v := model.AuctionSession{
		ID:        t.s.data.nextID(),
		Name:      name,
		Status:    model.SessionUpcoming,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.s.data.sessions[v.ID] = v
	return &v, nil
}

func (t *tx) UpdateSession(_ context.Context, s *model.AuctionSession) error {
	if err := t.fault("UpdateSession"); err != nil {
		return err
	}
	if _, ok := t.s.data.sessions[s.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.Status == model.SessionLive {
		for id, other := range t.s.data.sessions {
			if id != s.ID && other.Status == model.SessionLive {
				return fmt.Errorf("update session: %w", repository.ErrConflict)
			}
		}
	}
	if s.CurrentPlayerID != nil {
		for id, other := range t.s.data.sessions {
			if id != s.ID && other.HasCurrentPlayer(*s.CurrentPlayerID) {
				return fmt.Errorf("update session: %w", repository.ErrConflict)
			}
		}
	}
	if s.BidCallCount < 0 || s.BidCallCount > 3 {
		return fmt.Errorf("update session: bid_call_count %d out of range", s.BidCallCount)
	}
	s.UpdatedAt = t.s.now()
	t.s.data.sessions[s.ID] = *s
	return nil
}

func (t *tx) InsertTeam(_ context.Context, team *model.Team) error {
	for _, other := range t.s.data.teams {
		if other.Name == team.Name || other.OwnerID == team.OwnerID {
			return fmt.Errorf("insert team: %w", repository.ErrConflict)
		}
	}
	now := t.s.now()
	team.ID = t.s.data.nextID()
	team.CreatedAt, team.UpdatedAt = now, now
	t.s.data.teams[team.ID] = *team
	return nil
}

func (t *tx) UpdateTeam(_ context.Context, team *model.Team) error {
	if err := t.fault("UpdateTeam"); err != nil {
		return err
	}
	cur, ok := t.s.data.teams[team.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if team.PurseRemaining < 0 || team.PurseRemaining > cur.TotalPurse {
		return fmt.Errorf("update team: purse %d outside [0, %d]", team.PurseRemaining, cur.TotalPurse)
	}
	if team.IconicPlayersCount < 0 || team.IconicPlayersCount > model.MaxIconicPlayers {
		return fmt.Errorf("update team: iconic count %d out of range", team.IconicPlayersCount)
	}
	cur.PurseRemaining = team.PurseRemaining
	cur.IconicPlayersCount = team.IconicPlayersCount
	cur.UpdatedAt = t.s.now()
	team.UpdatedAt = cur.UpdatedAt
	t.s.data.teams[team.ID] = cur
	return nil
}

func (t *tx) InsertPlayer(_ context.Context, p *model.Player) error {
	now := t.s.now()
	p.ID = t.s.data.nextID()
	p.CreatedAt, p.UpdatedAt = now, now
	t.s.data.players[p.ID] = *p
	return nil
}

func (t *tx) UpdatePlayer(_ context.Context, p *model.Player) error {
	if err := t.fault("UpdatePlayer"); err != nil {
		return err
	}
	cur, ok := t.s.data.players[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if (p.Status == model.PlayerSold) != (p.TeamID != nil) {
		return fmt.Errorf("update player: status %s with team %v", p.Status, p.TeamID)
	}
	if p.IsIconic && p.CurrentBid != 0 {
		return fmt.Errorf("update player: iconic player with bid %d", p.CurrentBid)
	}
	cur.CurrentBid = p.CurrentBid
	cur.Status = p.Status
	cur.TeamID = p.TeamID
	cur.IsIconic = p.IsIconic
	cur.AssignedAt = p.AssignedAt
	cur.UpdatedAt = t.s.now()
	p.UpdatedAt = cur.UpdatedAt
	t.s.data.players[p.ID] = cur
	return nil
}

func (t *tx) ReleaseTeamPlayers(_ context.Context, teamID int64) (int, error) {
	n := 0
	now := t.s.now()
	for id, p := range t.s.data.players {
		if p.TeamID == nil || *p.TeamID != teamID {
			continue
		}
		p.TeamID = nil
		p.Status = model.PlayerApproved
		p.CurrentBid = 0
		p.IsIconic = false
		p.AssignedAt = nil
		p.UpdatedAt = now
		t.s.data.players[id] = p
		n++
	}
	return n, nil
}

func (t *tx) InsertBid(_ context.Context, b *model.Bid) error {
	if err := t.fault("InsertBid"); err != nil {
		return err
	}
	b.ID = t.s.data.nextID()
	b.CreatedAt = t.s.now()
	t.s.data.bids = append(t.s.data.bids, *b)
	return nil
}

func (t *tx) InsertSale(_ context.Context, r *model.SaleRecord) error {
	if err := t.fault("InsertSale"); err != nil {
		return err
	}
	for _, other := range t.s.data.sales {
		if other.SessionID == r.SessionID && other.PlayerID == r.PlayerID {
			return fmt.Errorf("insert sale record: %w", repository.ErrConflict)
		}
	}
	r.ID = t.s.data.nextID()
	r.CreatedAt = t.s.now()
	t.s.data.sales = append(t.s.data.sales, *r)
	return nil
}

func (t *tx) InsertPaddle(_ context.Context, p *model.PaddleRaise) error {
	p.ID = t.s.data.nextID()
	p.CreatedAt = t.s.now()
	t.s.data.paddles[p.ID] = *p
	return nil
}

func (t *tx) UpdatePaddle(_ context.Context, p *model.PaddleRaise) error {
	cur, ok := t.s.data.paddles[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Acknowledged = p.Acknowledged
	cur.AcknowledgedAt = p.AcknowledgedAt
	t.s.data.paddles[p.ID] = cur
	return nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*tx)(nil)
)
