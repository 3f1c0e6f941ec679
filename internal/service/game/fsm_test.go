package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type testPlayer struct {
	id     string
	name   string
	token  string
	respCh chan ResponseWrapper
}

func newTestMachine(t *testing.T, opts Options) (*GameMachine, *FakeClock) {
	t.Helper()

	restore := zap.ReplaceGlobals(zaptest.NewLogger(t))

	clock := NewFakeClock(fakeEpoch)
	opts.Clock = clock
	opts.Rand = rand.New(rand.NewPCG(7, 11))

	gm := NewGameMachine("room-test", opts)
	go gm.Start()

	t.Cleanup(func() {
		restore()
		gm.Stop()
	})

	return gm, clock
}

func joinPlayers(t *testing.T, gm *GameMachine, n int) []testPlayer {
	t.Helper()

	players := make([]testPlayer, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("P%d", i+1)
		respCh := make(chan ResponseWrapper, 256)

		resp, err := gm.Join(name, respCh)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}

		players = append(players, testPlayer{
			id:     resp.Joiner.ID,
			name:   name,
			token:  resp.ReconnectToken,
			respCh: respCh,
		})
	}

	return players
}

func phaseOf(t *testing.T, gm *GameMachine) (Phase, int) {
	t.Helper()

	var phase Phase
	var day int
	if err := gm.Inspect(func(ctx *GameContext) {
		phase, day = ctx.Phase, ctx.DayNumber
	}); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	return phase, day
}

func expectPhase(t *testing.T, gm *GameMachine, want Phase) {
	t.Helper()

	if got, day := phaseOf(t, gm); got != want {
		t.Fatalf("want phase %s got %s (day %d)", want, got, day)
	}
}

// idsByRole 读取分配结果，测试据此扮演各个角色
func idsByRole(t *testing.T, gm *GameMachine) map[Role][]string {
	t.Helper()

	byRole := make(map[Role][]string)
	if err := gm.Inspect(func(ctx *GameContext) {
		for _, p := range ctx.Registry.Ordered() {
			byRole[p.Role] = append(byRole[p.Role], p.ID)
		}
	}); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	return byRole
}

func isAlive(t *testing.T, gm *GameMachine, playerID string) bool {
	t.Helper()

	alive := false
	gm.Inspect(func(ctx *GameContext) {
		if p, ok := ctx.Registry.Get(playerID); ok {
			alive = p.Alive
		}
	})

	return alive
}

// drain 取出通道中已缓冲的所有响应
func drain(ch chan ResponseWrapper) []ResponseWrapper {
	out := make([]ResponseWrapper, 0)
	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, resp)
		default:
			return out
		}
	}
}

func findResp(resps []ResponseWrapper, respType string) (ResponseWrapper, bool) {
	for _, r := range resps {
		if r.RespType == respType {
			return r, true
		}
	}

	return ResponseWrapper{}, false
}

func expectCode(t *testing.T, err error, want Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("want %s, got nil", want)
	}
	if got := CodeOf(err); got != want {
		t.Fatalf("want %s, got %s (%v)", want, got, err)
	}
}

// advanceToVoting 由主持人快速推进到投票阶段，夜晚无人行动
func advanceToVoting(t *testing.T, gm *GameMachine, hostID string) {
	t.Helper()

	for i := 0; i < 10; i++ {
		phase, _ := phaseOf(t, gm)
		if phase == PHASE_VOTING {
			return
		}
		if err := gm.AdvancePhase(hostID); err != nil {
			t.Fatalf("advance from %s: %v", phase, err)
		}
	}

	t.Fatalf("never reached voting")
}

func TestGameMachine_FullCycleWithRescue(t *testing.T) {
	gm, clock := newTestMachine(t, DefaultOptions())
	durations := DefaultPhaseDurations()

	players := joinPlayers(t, gm, 5)
	host := players[0]

	if err := gm.StartGame(host.id, Settings{MafiaCount: 1, HasDoctor: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	phase, day := phaseOf(t, gm)
	if phase != PHASE_MAFIA_INTRO || day != 1 {
		t.Fatalf("want MafiaIntro day 1, got %s day %d", phase, day)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]
	doctor := roles[ROLE_DOCTOR][0]
	sheriff := roles[ROLE_SHERIFF][0]
	c1, c2 := roles[ROLE_CITIZEN][0], roles[ROLE_CITIZEN][1]

	clock.Advance(durations.MafiaIntro)
	expectPhase(t, gm, PHASE_MAFIA)

	// the only mafia member acting closes the window early
	if err := gm.NightAction(leader, ACTION_MAFIA_TARGET, c1); err != nil {
		t.Fatalf("mafia target: %v", err)
	}
	expectPhase(t, gm, PHASE_DOCTOR)

	if err := gm.NightAction(doctor, ACTION_DOCTOR_SAVE, c1); err != nil {
		t.Fatalf("doctor save: %v", err)
	}
	expectPhase(t, gm, PHASE_SHERIFF)

	clock.Advance(durations.Sheriff)
	expectPhase(t, gm, PHASE_DAY)

	if !isAlive(t, gm, c1) {
		t.Fatalf("saved player died")
	}

	var night *NightResult
	gm.Inspect(func(ctx *GameContext) {
		entries := ctx.History.Entries()
		if len(entries) == 1 {
			night = entries[0].Night
		}
	})
	if night == nil || night.Outcome != NIGHT_RESCUE {
		t.Fatalf("want one rescue night in history, got %+v", night)
	}

	resolved, ok := findResp(drain(players[4].respCh), RESP_NIGHT_RESOLVED)
	if !ok {
		t.Fatalf("night result was not broadcast")
	}
	if public := resolved.Data.(NightResult); public.SavedID != c1 {
		t.Fatalf("a successful rescue should name the saved player, got %+v", public)
	}

	clock.Advance(durations.Day)
	expectPhase(t, gm, PHASE_VOTING)

	for _, voter := range []string{sheriff, doctor, c1} {
		if err := gm.Vote(voter, c2); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	if err := gm.Vote(leader, c1); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// one living player has not voted, so the window stays open
	expectPhase(t, gm, PHASE_VOTING)

	clock.Advance(durations.Voting)

	if isAlive(t, gm, c2) {
		t.Fatalf("%s should have been eliminated", c2)
	}

	phase, day = phaseOf(t, gm)
	if phase != PHASE_MAFIA_INTRO || day != 2 {
		t.Fatalf("want MafiaIntro day 2, got %s day %d", phase, day)
	}
}

func TestGameMachine_MafiaWinsAtParity(t *testing.T) {
	gm, clock := newTestMachine(t, DefaultOptions())
	durations := DefaultPhaseDurations()

	players := joinPlayers(t, gm, 4)
	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]
	sheriff := roles[ROLE_SHERIFF][0]
	c1, c2 := roles[ROLE_CITIZEN][0], roles[ROLE_CITIZEN][1]

	clock.Advance(durations.MafiaIntro)
	if err := gm.NightAction(leader, ACTION_MAFIA_TARGET, c1); err != nil {
		t.Fatalf("mafia target: %v", err)
	}

	// no doctor in play: the window still runs its full duration
	expectPhase(t, gm, PHASE_DOCTOR)
	clock.Advance(durations.Doctor)
	expectPhase(t, gm, PHASE_SHERIFF)

	if err := gm.NightAction(sheriff, ACTION_SHERIFF_CHECK, leader); err != nil {
		t.Fatalf("sheriff check: %v", err)
	}
	expectPhase(t, gm, PHASE_DAY)

	var sheriffCh chan ResponseWrapper
	for _, p := range players {
		if p.id == sheriff {
			sheriffCh = p.respCh
		}
	}

	check, ok := findResp(drain(sheriffCh), RESP_CHECK_RESULT)
	if !ok {
		t.Fatalf("sheriff did not receive the check result")
	}
	if result := check.Data.(CheckResultResponse); result.TargetID != leader || !result.IsMafia {
		t.Fatalf("unexpected check result %+v", result)
	}

	if isAlive(t, gm, c1) {
		t.Fatalf("unprotected target survived the night")
	}

	clock.Advance(durations.Day)
	expectPhase(t, gm, PHASE_VOTING)

	gm.Vote(leader, sheriff)
	gm.Vote(c2, sheriff)
	gm.Vote(sheriff, leader)

	// every living player voted, so the vote resolves immediately
	expectPhase(t, gm, PHASE_ENDED)

	snap, err := gm.Snapshot(c2)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Winner != WINNER_MAFIA {
		t.Fatalf("want mafia win got %s", snap.Winner)
	}
	for _, v := range snap.Players {
		if v.Role == "" {
			t.Fatalf("roles should be revealed once the game ends")
		}
	}

	if clock.Pending() != 0 {
		t.Fatalf("no timer should be armed after the game ends")
	}
}

func TestGameMachine_CitizensWinByVote(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 4)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]

	advanceToVoting(t, gm, host.id)

	for _, p := range players {
		target := leader
		if p.id == leader {
			target = roles[ROLE_SHERIFF][0]
		}
		if err := gm.Vote(p.id, target); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	expectPhase(t, gm, PHASE_ENDED)

	for _, p := range players {
		ended, ok := findResp(drain(p.respCh), RESP_GAME_ENDED)
		if !ok {
			t.Fatalf("%s did not receive the game result", p.name)
		}
		if result := ended.Data.(GameEndedResponse); result.Winner != WINNER_CITIZENS {
			t.Fatalf("want citizens win got %s", result.Winner)
		}
	}
}

func TestGameMachine_WindowErrors(t *testing.T) {
	gm, clock := newTestMachine(t, DefaultOptions())
	durations := DefaultPhaseDurations()

	players := joinPlayers(t, gm, 5)

	expectCode(t, gm.Vote(players[1].id, players[2].id), CodeWrongPhase)
	expectCode(t, gm.NightAction(players[1].id, ACTION_MAFIA_TARGET, players[2].id), CodeWrongPhase)

	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 1, HasDoctor: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]
	doctor := roles[ROLE_DOCTOR][0]
	citizen := roles[ROLE_CITIZEN][0]

	clock.Advance(durations.MafiaIntro)
	expectPhase(t, gm, PHASE_MAFIA)

	// a later window in the same night is not open yet
	expectCode(t, gm.NightAction(doctor, ACTION_DOCTOR_SAVE, citizen), CodeWrongPhase)
	expectCode(t, gm.NightAction(citizen, ACTION_MAFIA_TARGET, doctor), CodeWrongRole)
	expectCode(t, gm.NightAction(leader, ACTION_MAFIA_TARGET, "nobody"), CodeUnknownPlayer)

	clock.Advance(durations.Mafia)
	expectPhase(t, gm, PHASE_DOCTOR)

	// an earlier window of the same night has closed
	expectCode(t, gm.NightAction(leader, ACTION_MAFIA_TARGET, citizen), CodePhaseClosed)

	clock.Advance(durations.Doctor + durations.Sheriff)
	expectPhase(t, gm, PHASE_DAY)

	expectCode(t, gm.NightAction(doctor, ACTION_DOCTOR_SAVE, citizen), CodePhaseClosed)
	expectCode(t, gm.Vote(citizen, leader), CodeWrongPhase)
	expectCode(t, gm.HunterChoice(citizen, leader), CodeInvalidHunterAction)
	expectCode(t, gm.StartGame(players[0].id, Settings{MafiaCount: 1}), CodeWrongPhase)
}

func TestGameMachine_RejectPolicyRefusesSecondVote(t *testing.T) {
	opts := DefaultOptions()
	opts.ResubmitPolicy = RESUBMIT_REJECT

	gm, _ := newTestMachine(t, opts)

	players := joinPlayers(t, gm, 5)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	advanceToVoting(t, gm, host.id)

	if err := gm.Vote(players[1].id, players[2].id); err != nil {
		t.Fatalf("first vote should succeed, got: %v", err)
	}

	expectCode(t, gm.Vote(players[1].id, players[3].id), CodeAlreadySubmitted)

	var votes map[string]string
	gm.Inspect(func(ctx *GameContext) {
		votes = make(map[string]string)
		for k, v := range ctx.Votes {
			votes[k] = v
		}
	})

	if len(votes) != 1 || votes[players[1].id] != players[2].id {
		t.Fatalf("duplicate vote mutated votes, got %v", votes)
	}
}

func TestGameMachine_OverwritePolicyKeepsLastVote(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 5)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	advanceToVoting(t, gm, host.id)

	gm.Vote(players[1].id, players[2].id)
	if err := gm.Vote(players[1].id, players[3].id); err != nil {
		t.Fatalf("overwrite should be accepted, got %v", err)
	}

	var target string
	gm.Inspect(func(ctx *GameContext) {
		target = ctx.Votes[players[1].id]
	})
	if target != players[3].id {
		t.Fatalf("want last vote %s got %s", players[3].id, target)
	}
}

func TestGameMachine_HunterRevenge(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 5)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1, HasHunter: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]
	hunter := roles[ROLE_HUNTER][0]
	citizen := roles[ROLE_CITIZEN][0]

	advanceToVoting(t, gm, host.id)

	for _, p := range players {
		target := hunter
		if p.id == hunter {
			target = citizen
		}
		if err := gm.Vote(p.id, target); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	expectPhase(t, gm, PHASE_HUNTER_REVENGE)

	expectCode(t, gm.HunterChoice(citizen, leader), CodeInvalidHunterAction)
	expectCode(t, gm.Vote(citizen, leader), CodePhaseClosed)

	if err := gm.HunterChoice(hunter, leader); err != nil {
		t.Fatalf("hunter choice: %v", err)
	}

	if isAlive(t, gm, leader) {
		t.Fatalf("hunter's target should be dead")
	}

	expectPhase(t, gm, PHASE_ENDED)

	// the revenge is single shot
	expectCode(t, gm.HunterChoice(hunter, citizen), CodeInvalidHunterAction)
	if !isAlive(t, gm, citizen) {
		t.Fatalf("a second hunter choice must not kill anyone")
	}

	snap, _ := gm.Snapshot("")
	if snap.Winner != WINNER_CITIZENS {
		t.Fatalf("want citizens win got %s", snap.Winner)
	}
}

func TestGameMachine_HunterWindowTimesOut(t *testing.T) {
	gm, clock := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 5)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1, HasHunter: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	hunter := roles[ROLE_HUNTER][0]

	advanceToVoting(t, gm, host.id)

	for _, p := range players {
		target := hunter
		if p.id == hunter {
			target = roles[ROLE_CITIZEN][0]
		}
		gm.Vote(p.id, target)
	}

	expectPhase(t, gm, PHASE_HUNTER_REVENGE)

	clock.Advance(DefaultPhaseDurations().Hunter)

	phase, day := phaseOf(t, gm)
	if phase != PHASE_MAFIA_INTRO || day != 2 {
		t.Fatalf("want the next night after a skipped revenge, got %s day %d", phase, day)
	}

	var last HistoryEntry
	gm.Inspect(func(ctx *GameContext) {
		entries := ctx.History.Entries()
		last = entries[len(entries)-1]
	})
	if last.Kind != HISTORY_HUNTER || last.Hunter == nil || !last.Hunter.Skipped {
		t.Fatalf("want a skipped hunter entry, got %+v", last)
	}
}

func TestGameMachine_StaleTimeoutIsDropped(t *testing.T) {
	gm, clock := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 4)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := gm.AdvancePhase(host.id); err != nil {
		t.Fatalf("advance: %v", err)
	}
	expectPhase(t, gm, PHASE_MAFIA)

	// an expiry carrying an old epoch must not move the session
	if _, err := gm.Dispatch(RequestWrapper{
		ReqType:    REQ_TIMEOUT,
		NativeData: &TimeoutRequest{Phase: PHASE_MAFIA, Epoch: 0},
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	expectPhase(t, gm, PHASE_MAFIA)

	// the intro deadline was cancelled when the host advanced
	clock.Advance(DefaultPhaseDurations().MafiaIntro)
	expectPhase(t, gm, PHASE_MAFIA)

	expectCode(t, gm.AdvancePhase(players[1].id), CodeNotHost)
}

func TestGameMachine_StartValidation(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 3)

	expectCode(t, gm.StartGame(players[1].id, Settings{MafiaCount: 1}), CodeNotHost)

	err := gm.StartGame(players[0].id, Settings{MafiaCount: 1})
	expectCode(t, err, CodeInvalidSetting)

	var gameErr *Error
	if !errors.As(err, &gameErr) || len(gameErr.Reasons) == 0 {
		t.Fatalf("invalid settings should carry reasons, got %v", err)
	}

	expectPhase(t, gm, PHASE_LOBBY)
}

func TestGameMachine_LobbyJoinAndHostHandover(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPlayers = 3

	gm, _ := newTestMachine(t, opts)

	players := joinPlayers(t, gm, 3)

	if _, err := gm.Join("P4", make(chan ResponseWrapper, 8)); CodeOf(err) != CodeRoomFull {
		t.Fatalf("want room full, got %v", err)
	}
	if _, err := gm.Join("p2", make(chan ResponseWrapper, 8)); CodeOf(err) != CodeDuplicateOrEmptyName {
		t.Fatalf("want duplicate name, got %v", err)
	}

	if err := gm.Disconnect(players[0].id, players[0].respCh); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	snap, err := gm.Snapshot(players[1].id)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Players) != 2 {
		t.Fatalf("lobby departure should remove the player, got %d players", len(snap.Players))
	}
	if !snap.Players[0].IsHost || snap.Players[0].ID != players[1].id {
		t.Fatalf("host should pass to the earliest remaining player")
	}

	// the session closes the departed player's channel
	for range players[0].respCh {
	}
}

func TestGameMachine_ReconnectMidGame(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 4)
	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	dropped := players[2]
	if err := gm.Disconnect(dropped.id, dropped.respCh); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	snap, _ := gm.Snapshot(players[0].id)
	for _, v := range snap.Players {
		if v.ID == dropped.id && (v.Connected || !v.Alive) {
			t.Fatalf("mid-game departure should keep the seat alive but disconnected, got %+v", v)
		}
	}

	if _, err := gm.Join("Newcomer", make(chan ResponseWrapper, 8)); CodeOf(err) != CodeWrongPhase {
		t.Fatalf("new players cannot join a running game, got %v", err)
	}

	// the name alone does not hand over a disconnected seat
	intruderCh := make(chan ResponseWrapper, 8)
	if _, err := gm.Join(dropped.name, intruderCh); CodeOf(err) != CodeDuplicateOrEmptyName {
		t.Fatalf("want duplicate name without the reconnect token, got %v", err)
	}
	if _, err := gm.JoinWith(JoinGameRequest{PlayerName: dropped.name, ReconnectToken: players[1].token, RespCh: intruderCh}); CodeOf(err) != CodeDuplicateOrEmptyName {
		t.Fatalf("another seat's token must not match, got %v", err)
	}
	if leaked := drain(intruderCh); len(leaked) != 0 {
		t.Fatalf("a refused join received %d messages", len(leaked))
	}

	newCh := make(chan ResponseWrapper, 64)
	resp, err := gm.JoinWith(JoinGameRequest{PlayerName: dropped.name, ReconnectToken: dropped.token, RespCh: newCh})
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !resp.Reconnected || resp.Joiner.ID != dropped.id {
		t.Fatalf("reconnect should re-attach the same seat, got %+v", resp)
	}
	if resp.Joiner.Role == "" {
		t.Fatalf("reconnected player should see their own role")
	}

	if _, ok := findResp(drain(newCh), RESP_ROLE_ASSIGNED); !ok {
		t.Fatalf("reconnected player should be re-sent their role")
	}

	// a late close of the old connection must not detach the new one
	if err := gm.Disconnect(dropped.id, dropped.respCh); err != nil {
		t.Fatalf("stale disconnect: %v", err)
	}
	snap, _ = gm.Snapshot(dropped.id)
	for _, v := range snap.Players {
		if v.ID == dropped.id && !v.Connected {
			t.Fatalf("stale disconnect detached the reconnected player")
		}
	}
}

func TestGameMachine_HostLeaveAborts(t *testing.T) {
	opts := DefaultOptions()
	opts.AbortOnHostLeave = true

	gm, _ := newTestMachine(t, opts)

	players := joinPlayers(t, gm, 4)
	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := gm.Disconnect(players[0].id, players[0].respCh); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	expectPhase(t, gm, PHASE_ENDED)

	ended, ok := findResp(drain(players[1].respCh), RESP_GAME_ENDED)
	if !ok {
		t.Fatalf("players should be told the game ended")
	}
	if result := ended.Data.(GameEndedResponse); result.Winner != WINNER_NONE {
		t.Fatalf("an aborted game has no winner, got %s", result.Winner)
	}

	// hosting moves on so the room can be reset
	expectCode(t, gm.Reset(players[0].id), CodeNotHost)
	if err := gm.Reset(players[1].id); err != nil {
		t.Fatalf("the new host should be able to reset: %v", err)
	}
	expectPhase(t, gm, PHASE_LOBBY)
}

func TestGameMachine_HostLeaveHandsOverHosting(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 4)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := gm.Disconnect(host.id, host.respCh); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// the game keeps running under the earliest connected player
	expectPhase(t, gm, PHASE_MAFIA_INTRO)
	if err := gm.AdvancePhase(players[1].id); err != nil {
		t.Fatalf("the new host should be able to advance: %v", err)
	}
	expectPhase(t, gm, PHASE_MAFIA)

	resp, err := gm.JoinWith(JoinGameRequest{
		PlayerName:     host.name,
		ReconnectToken: host.token,
		RespCh:         make(chan ResponseWrapper, 64),
	})
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if resp.Joiner.IsHost {
		t.Fatalf("a returning host should not take hosting back while someone else holds it")
	}
}

func TestGameMachine_HostSeesRolesKeepsHostingUntilEnd(t *testing.T) {
	opts := DefaultOptions()
	opts.HostSeesRoles = true

	gm, _ := newTestMachine(t, opts)

	players := joinPlayers(t, gm, 4)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := gm.Disconnect(host.id, host.respCh); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// handing over now would show every role to a player
	expectCode(t, gm.AdvancePhase(players[1].id), CodeNotHost)

	snap, err := gm.Snapshot(players[1].id)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	roles := 0
	for _, v := range snap.Players {
		if v.Role != "" {
			roles++
		}
	}
	if roles != 1 {
		t.Fatalf("a player should only see their own role, got %d", roles)
	}
}

func TestGameMachine_ResetReturnsToLobby(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())

	players := joinPlayers(t, gm, 5)
	host := players[0]
	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	advanceToVoting(t, gm, host.id)

	expectCode(t, gm.Reset(players[1].id), CodeNotHost)

	gm.Disconnect(players[4].id, players[4].respCh)

	if err := gm.Reset(host.id); err != nil {
		t.Fatalf("reset: %v", err)
	}

	gm.Inspect(func(ctx *GameContext) {
		if ctx.Phase != PHASE_LOBBY || ctx.DayNumber != 0 || ctx.History.Len() != 0 {
			t.Errorf("reset left state behind: phase %s day %d history %d", ctx.Phase, ctx.DayNumber, ctx.History.Len())
		}
		if ctx.Registry.Len() != 4 {
			t.Errorf("disconnected players should be dropped on reset, got %d", ctx.Registry.Len())
		}
		for _, p := range ctx.Registry.Ordered() {
			if p.Role != ROLE_UNSET || !p.Alive {
				t.Errorf("%s kept game state after reset", p.Name)
			}
		}
	})

	expectCode(t, gm.Reset(host.id), CodeWrongPhase)

	if err := gm.StartGame(host.id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("a reset room should start again: %v", err)
	}
}

func TestGameMachine_SnapshotVisibility(t *testing.T) {
	opts := DefaultOptions()
	opts.HostSeesRoles = true

	gm, _ := newTestMachine(t, opts)

	players := joinPlayers(t, gm, 4)
	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}

	countRoles := func(viewerID string) int {
		snap, err := gm.Snapshot(viewerID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		n := 0
		for _, v := range snap.Players {
			if v.Role != "" {
				n++
			}
		}
		return n
	}

	if got := countRoles(players[0].id); got != 4 {
		t.Fatalf("host should see all 4 roles, got %d", got)
	}
	if got := countRoles(players[1].id); got != 1 {
		t.Fatalf("a player should only see their own role, got %d", got)
	}
	if got := countRoles(""); got != 0 {
		t.Fatalf("an anonymous snapshot should hide every role, got %d", got)
	}

	if _, err := gm.Snapshot("nobody"); CodeOf(err) != CodeUnknownPlayer {
		t.Fatalf("want unknown player, got %v", err)
	}
}

func TestGameMachine_StoppedRoomRefusesRequests(t *testing.T) {
	gm, _ := newTestMachine(t, DefaultOptions())
	gm.Stop()

	if _, err := gm.Join("late", make(chan ResponseWrapper, 1)); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("want room closed, got %v", err)
	}
}

func TestGameMachine_NightTargetMostRecentWins(t *testing.T) {
	gm, clock := newTestMachine(t, DefaultOptions())
	durations := DefaultPhaseDurations()

	players := joinPlayers(t, gm, 6)
	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 2}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]
	mafia := roles[ROLE_MAFIA][0]
	c1, c2 := roles[ROLE_CITIZEN][0], roles[ROLE_CITIZEN][1]

	clock.Advance(durations.MafiaIntro)
	expectPhase(t, gm, PHASE_MAFIA)

	if err := gm.NightAction(leader, ACTION_MAFIA_TARGET, c1); err != nil {
		t.Fatalf("leader target: %v", err)
	}

	// one mafia member has not acted yet
	expectPhase(t, gm, PHASE_MAFIA)

	if err := gm.NightAction(mafia, ACTION_MAFIA_TARGET, c2); err != nil {
		t.Fatalf("mafia target: %v", err)
	}
	expectPhase(t, gm, PHASE_DOCTOR)

	clock.Advance(durations.Doctor)
	clock.Advance(durations.Sheriff)
	expectPhase(t, gm, PHASE_DAY)

	if isAlive(t, gm, c2) {
		t.Fatalf("the most recent mafia target should die")
	}
	if !isAlive(t, gm, c1) {
		t.Fatalf("the overwritten mafia target should survive")
	}
}

func TestGameMachine_RejectPolicyRefusesSecondNightAction(t *testing.T) {
	opts := DefaultOptions()
	opts.ResubmitPolicy = RESUBMIT_REJECT

	gm, clock := newTestMachine(t, opts)

	players := joinPlayers(t, gm, 6)
	if err := gm.StartGame(players[0].id, Settings{MafiaCount: 2}); err != nil {
		t.Fatalf("start: %v", err)
	}

	roles := idsByRole(t, gm)
	leader := roles[ROLE_MAFIA_LEADER][0]
	c1, c2 := roles[ROLE_CITIZEN][0], roles[ROLE_CITIZEN][1]

	clock.Advance(DefaultPhaseDurations().MafiaIntro)
	expectPhase(t, gm, PHASE_MAFIA)

	if err := gm.NightAction(leader, ACTION_MAFIA_TARGET, c1); err != nil {
		t.Fatalf("first action should succeed, got: %v", err)
	}

	expectCode(t, gm.NightAction(leader, ACTION_MAFIA_TARGET, c2), CodeAlreadySubmitted)

	var target string
	gm.Inspect(func(ctx *GameContext) {
		target = ctx.NightActions[ACTION_MAFIA_TARGET]
	})
	if target != c1 {
		t.Fatalf("a refused resubmission changed the target to %s", target)
	}
	expectPhase(t, gm, PHASE_MAFIA)
}
