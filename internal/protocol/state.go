package protocol

import "fmt"

// Game phases derived from emulator RAM.
const (
	PhaseOverworld = "overworld"
	PhaseBattle    = "battle"
	PhaseMenu      = "menu"
	PhaseDialogue  = "dialogue"
)

// GameState is the schema-validated document produced by the RAM decoder and
// broadcast to every agent. Battle is non-nil exactly when Phase is "battle";
// Overworld is non-nil exactly when it isn't.
type GameState struct {
	Turn             int          `json:"turn"`
	Phase            string       `json:"phase"`
	SecondsRemaining int          `json:"secondsRemaining"`
	AvailableActions []string     `json:"availableActions"`
	Player           Player       `json:"player"`
	Party            []Pokemon    `json:"party"`
	Inventory        []Item       `json:"inventory"`
	Battle           *Battle      `json:"battle"`
	Overworld        *Overworld   `json:"overworld"`
	ScreenText       *string      `json:"screenText"`
	MenuState        *Menu        `json:"menuState"`
	Progress         Progress     `json:"progress"`
	TurnHistory      []TurnRecord `json:"turnHistory"`
	YourScore        int          `json:"yourScore"`
	YourRank         int          `json:"yourRank"`
	TotalAgents      int          `json:"totalAgents"`
	Streak           int          `json:"streak"`
	Tip              string       `json:"tip"`
}

// Player describes the trainer.
type Player struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// Position is the player's overworld location.
type Position struct {
	MapID  int    `json:"mapId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Facing string `json:"facing"`
}

// Pokemon is one party member (or, in battle, one battler's summary).
type Pokemon struct {
	Species   string   `json:"species"`
	Level     int      `json:"level"`
	HP        int      `json:"hp"`
	MaxHP     int      `json:"maxHp"`
	HPPercent float64  `json:"hpPercent"`
	Status    string   `json:"status"`
	Types     []string `json:"types"`
	Moves     []Move   `json:"moves"`
	Stats     Stats    `json:"stats"`
}

// Move is one known move, with battle effectiveness against the current
// opponent when inside a battle (1.0 otherwise).
type Move struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Power         int     `json:"power"`
	Accuracy      int     `json:"accuracy"`
	PP            int     `json:"pp"`
	MaxPP         int     `json:"maxPp"`
	Category      string  `json:"category"` // physical | special | status
	Effectiveness float64 `json:"effectiveness"`
}

// Stats are the computed battle stats. Gen-1 has a single Special stat; it is
// reported as both specialAttack and specialDefense.
type Stats struct {
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	Speed          int `json:"speed"`
	SpecialAttack  int `json:"specialAttack"`
	SpecialDefense int `json:"specialDefense"`
}

// StatModifiers are user-facing stage modifiers in [-6, +6].
type StatModifiers struct {
	Attack   int `json:"attack"`
	Defense  int `json:"defense"`
	Speed    int `json:"speed"`
	Special  int `json:"special"`
	Accuracy int `json:"accuracy"`
	Evasion  int `json:"evasion"`
}

// Item is one inventory slot.
type Item struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Battle is present while a battle is in progress.
type Battle struct {
	Kind      string        `json:"kind"` // wild | trainer
	Active    Pokemon       `json:"active"`
	Opponent  Pokemon       `json:"opponent"`
	Modifiers StatModifiers `json:"modifiers"`
}

// Overworld is present outside battle.
type Overworld struct {
	MapID         int      `json:"mapId"`
	Sprites       []Sprite `json:"sprites"`
	Warps         []Warp   `json:"warps"`
	EncounterRate int      `json:"encounterRate"`
}

// Sprite is a non-player map entity (sprites 1..15; slot 0 is the player).
type Sprite struct {
	Index     int    `json:"index"`
	PictureID int    `json:"pictureId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Facing    string `json:"facing"`
}

// Warp is a map exit.
type Warp struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	DestWarp int `json:"destWarp"`
	DestMap  int `json:"destMap"`
}

// Menu is an interactive on-screen menu (a box containing the cursor).
type Menu struct {
	Lines      []string `json:"lines"`
	CursorLine int      `json:"cursorLine"`
}

// Progress summarises long-term game progress.
type Progress struct {
	Badges       int      `json:"badges"`
	BadgeNames   []string `json:"badgeNames"`
	PokedexOwned int      `json:"pokedexOwned"`
	PokedexSeen  int      `json:"pokedexSeen"`
	Money        int      `json:"money"`
	PlayTime     PlayTime `json:"playTime"`
}

// PlayTime is the in-game clock.
type PlayTime struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// TurnRecord describes one completed tick.
type TurnRecord struct {
	Turn   int    `json:"turn"`
	Action string `json:"action"`
	Votes  int    `json:"votes"`
	Phase  string `json:"phase"`
}

var validPhases = map[string]struct{}{
	PhaseOverworld: {},
	PhaseBattle:    {},
	PhaseMenu:      {},
	PhaseDialogue:  {},
}

// ValidateState checks the structural invariants of a game-state document.
// It is applied at the relay boundary to every state_push.
func ValidateState(s *GameState) error {
	if s == nil {
		return fmt.Errorf("state is null")
	}
	if s.Turn < 0 {
		return fmt.Errorf("turn %d is negative", s.Turn)
	}
	if _, ok := validPhases[s.Phase]; !ok {
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	if len(s.AvailableActions) != len(Buttons) {
		return fmt.Errorf("availableActions has %d entries, want %d", len(s.AvailableActions), len(Buttons))
	}
	for _, a := range s.AvailableActions {
		if !ValidAction(a) {
			return fmt.Errorf("unknown action %q in availableActions", a)
		}
	}
	if (s.Battle != nil) != (s.Phase == PhaseBattle) {
		return fmt.Errorf("battle presence does not match phase %q", s.Phase)
	}
	if s.Phase == PhaseBattle && s.Overworld != nil {
		return fmt.Errorf("overworld must be null in battle")
	}
	if len(s.Party) > 6 {
		return fmt.Errorf("party has %d members, max 6", len(s.Party))
	}
	for i := range s.Party {
		if err := validatePokemon(&s.Party[i]); err != nil {
			return fmt.Errorf("party[%d]: %w", i, err)
		}
	}
	if s.Battle != nil {
		if err := validatePokemon(&s.Battle.Active); err != nil {
			return fmt.Errorf("battle.active: %w", err)
		}
		if err := validatePokemon(&s.Battle.Opponent); err != nil {
			return fmt.Errorf("battle.opponent: %w", err)
		}
		if err := validateModifiers(&s.Battle.Modifiers); err != nil {
			return err
		}
	}
	if s.YourScore < 0 || s.YourRank < 0 || s.TotalAgents < 0 || s.Streak < 0 {
		return fmt.Errorf("score counters must be nonnegative")
	}
	return nil
}

func validatePokemon(p *Pokemon) error {
	if p.MaxHP < 1 {
		return fmt.Errorf("maxHp %d < 1", p.MaxHP)
	}
	if p.HP < 0 || p.HP > p.MaxHP {
		return fmt.Errorf("hp %d outside [0, %d]", p.HP, p.MaxHP)
	}
	if p.Level < 1 || p.Level > 100 {
		return fmt.Errorf("level %d outside [1, 100]", p.Level)
	}
	if len(p.Types) < 1 || len(p.Types) > 2 {
		return fmt.Errorf("types has %d entries, want 1 or 2", len(p.Types))
	}
	if len(p.Moves) > 4 {
		return fmt.Errorf("moves has %d entries, max 4", len(p.Moves))
	}
	return nil
}

func validateModifiers(m *StatModifiers) error {
	for _, v := range []int{m.Attack, m.Defense, m.Speed, m.Special, m.Accuracy, m.Evasion} {
		if v < -6 || v > 6 {
			return fmt.Errorf("stat modifier %d outside [-6, 6]", v)
		}
	}
	return nil
}
