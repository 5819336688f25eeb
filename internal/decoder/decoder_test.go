package decoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgp/crowdplay/internal/protocol"
)

func newRAM() []byte {
	return make([]byte, RAMSize)
}

func poke16(ram []byte, addr, v int) {
	ram[addr] = byte(v >> 8)
	ram[addr+1] = byte(v)
}

// writeText places a string on the tilemap using the Gen-1 charmap
// (uppercase letters only).
func writeText(ram []byte, row, col int, s string) {
	for i, r := range s {
		ram[addrTileMap+row*tileMapCols+col+i] = 0x80 + byte(r-'A')
	}
}

// battleRAM builds the wild-battle vector: a Venusaur opponent at 80/180 HP
// and a Fire-type attacker whose Ember should register as super effective.
func battleRAM() []byte {
	ram := newRAM()
	ram[addrIsInBattle] = 1

	// Opponent: Venusaur, Grass/Poison.
	ram[addrEnemyMon+bsSpecies] = 0x9A
	poke16(ram, addrEnemyMon+bsHP, 80)
	poke16(ram, addrEnemyMon+bsMaxHP, 180)
	ram[addrEnemyMon+bsLevel] = 32
	ram[addrEnemyMon+bsType1] = 0x16 // Grass
	ram[addrEnemyMon+bsType2] = 0x03 // Poison
	ram[addrEnemyMon+bsMoves] = 33   // Tackle
	ram[addrEnemyMon+bsPP] = 20
	poke16(ram, addrEnemyMon+bsAttack, 82)
	poke16(ram, addrEnemyMon+bsDefense, 83)
	poke16(ram, addrEnemyMon+bsSpeed, 80)
	poke16(ram, addrEnemyMon+bsSpecial, 100)

	// Active: Fire type with four populated move slots.
	ram[addrBattleMon+bsSpecies] = 0xB0
	poke16(ram, addrBattleMon+bsHP, 90)
	poke16(ram, addrBattleMon+bsMaxHP, 120)
	ram[addrBattleMon+bsLevel] = 36
	ram[addrBattleMon+bsType1] = 0x14 // Fire
	ram[addrBattleMon+bsType2] = 0x14
	ram[addrBattleMon+bsMoves+0] = 52 // Ember
	ram[addrBattleMon+bsMoves+1] = 33 // Tackle
	ram[addrBattleMon+bsMoves+2] = 10 // Scratch
	ram[addrBattleMon+bsMoves+3] = 45 // Growl
	for i := 0; i < 4; i++ {
		ram[addrBattleMon+bsPP+i] = 15
	}
	poke16(ram, addrBattleMon+bsAttack, 70)
	poke16(ram, addrBattleMon+bsDefense, 60)
	poke16(ram, addrBattleMon+bsSpeed, 85)
	poke16(ram, addrBattleMon+bsSpecial, 65)

	return ram
}

func TestDecodeWildBattle(t *testing.T) {
	state := Decode(battleRAM(), "g", 5)

	assert.Equal(t, 5, state.Turn)
	assert.Equal(t, protocol.PhaseBattle, state.Phase)
	require.NotNil(t, state.Battle)
	assert.Nil(t, state.Overworld)
	assert.Equal(t, "wild", state.Battle.Kind)

	opp := state.Battle.Opponent
	assert.Equal(t, "Venusaur", opp.Species)
	assert.Equal(t, 80, opp.HP)
	assert.Equal(t, 180, opp.MaxHP)
	assert.InDelta(t, 44.4, opp.HPPercent, 0.001)
	assert.Equal(t, []string{"Grass", "Poison"}, opp.Types)

	// Ember (Fire) vs Grass/Poison is 2x.
	active := state.Battle.Active
	require.Len(t, active.Moves, 4)
	assert.Equal(t, "Ember", active.Moves[0].Name)
	assert.Equal(t, 2.0, active.Moves[0].Effectiveness)

	assert.Contains(t, state.Tip, "super effective")
	assert.Contains(t, state.Tip, "Venusaur")
	assert.Len(t, state.AvailableActions, 8)
}

func TestDecodeTrainerBattleKind(t *testing.T) {
	ram := battleRAM()
	ram[addrIsInBattle] = 2
	state := Decode(ram, "g", 1)
	require.NotNil(t, state.Battle)
	assert.Equal(t, "trainer", state.Battle.Kind)
}

func TestDecodeDialogue(t *testing.T) {
	ram := newRAM()
	ram[addrTextBoxID] = 1
	ram[addrTileMap+dialogueBoxRow*tileMapCols] = tileBoxTopLeft
	writeText(ram, dialogueTextTop, 1, "HELLO")
	writeText(ram, dialogueTextTop+1, 1, "WORLD")

	state := Decode(ram, "g", 3)

	assert.Equal(t, protocol.PhaseDialogue, state.Phase)
	require.NotNil(t, state.ScreenText)
	assert.Equal(t, "HELLO\nWORLD", *state.ScreenText)
	assert.Len(t, state.AvailableActions, 8)
	assert.Contains(t, state.Tip, "'a'")
}

func TestDecodeMenu(t *testing.T) {
	ram := newRAM()
	// An 11x5 box with the cursor on its second interior row.
	top, left, bottom, right := 2, 2, 6, 12
	ram[addrTileMap+top*tileMapCols+left] = tileBoxTopLeft
	ram[addrTileMap+top*tileMapCols+right] = tileBoxTopRight
	ram[addrTileMap+bottom*tileMapCols+left] = tileBoxBottomLeft
	ram[addrTileMap+bottom*tileMapCols+right] = tileBoxBottomRight
	writeText(ram, 3, 4, "POKEDEX")
	ram[addrTileMap+4*tileMapCols+3] = tileCursor
	writeText(ram, 4, 4, "POKEMON")

	state := Decode(ram, "g", 0)

	assert.Equal(t, protocol.PhaseMenu, state.Phase)
	require.NotNil(t, state.MenuState)
	assert.Equal(t, 1, state.MenuState.CursorLine)
	require.Len(t, state.MenuState.Lines, 3)
	assert.True(t, strings.Contains(state.MenuState.Lines[1], ">"))
	assert.True(t, strings.Contains(state.MenuState.Lines[1], "POKEMON"))
}

func TestDecodeOverworld(t *testing.T) {
	ram := newRAM()
	ram[addrCurMap] = 12
	ram[addrPlayerX] = 5
	ram[addrPlayerY] = 9
	ram[addrPlayerFacing] = 0x04 // up
	ram[addrGrassRate] = 30

	// One NPC sprite in slot 2.
	base := addrSpriteData + 2*spriteSlotSize
	ram[base] = 7
	ram[base+4] = 10
	ram[base+6] = 11
	ram[base+9] = 0x08 // left

	ram[addrNumWarps] = 1
	ram[addrWarps] = 4   // y
	ram[addrWarps+1] = 3 // x
	ram[addrWarps+2] = 0
	ram[addrWarps+3] = 40

	state := Decode(ram, "g", 2)

	assert.Equal(t, protocol.PhaseOverworld, state.Phase)
	assert.Nil(t, state.Battle)
	require.NotNil(t, state.Overworld)
	assert.Equal(t, 12, state.Overworld.MapID)
	assert.Equal(t, 30, state.Overworld.EncounterRate)
	assert.Equal(t, "up", state.Player.Position.Facing)

	require.Len(t, state.Overworld.Sprites, 1)
	assert.Equal(t, 2, state.Overworld.Sprites[0].Index)
	assert.Equal(t, "left", state.Overworld.Sprites[0].Facing)

	require.Len(t, state.Overworld.Warps, 1)
	assert.Equal(t, 40, state.Overworld.Warps[0].DestMap)

	assert.Contains(t, state.Tip, "encounters")
}

func TestDecodeProgress(t *testing.T) {
	ram := newRAM()
	ram[addrBadges] = 0b00000101 // Boulder + Thunder
	ram[addrMoney] = 0x01
	ram[addrMoney+1] = 0x23
	ram[addrMoney+2] = 0x45
	ram[addrPlayTimeHours] = 4
	ram[addrPlayTimeMinutes] = 20
	ram[addrPlayTimeSeconds] = 7
	ram[addrPokedexOwned] = 0xFF // 8 owned
	ram[addrPokedexSeen] = 0xFF
	ram[addrPokedexSeen+1] = 0x01 // 9 seen

	state := Decode(ram, "g", 0)

	assert.Equal(t, 2, state.Progress.Badges)
	assert.Equal(t, []string{"Boulder Badge", "Thunder Badge"}, state.Progress.BadgeNames)
	assert.Equal(t, 12345, state.Progress.Money)
	assert.Equal(t, 8, state.Progress.PokedexOwned)
	assert.Equal(t, 9, state.Progress.PokedexSeen)
	assert.Equal(t, 4, state.Progress.PlayTime.Hours)
	assert.Equal(t, 20, state.Progress.PlayTime.Minutes)
	assert.Equal(t, 7, state.Progress.PlayTime.Seconds)
}

func TestDecodeParty(t *testing.T) {
	ram := newRAM()
	ram[addrPartyCount] = 2

	base := addrPartyMons
	ram[base+pmSpecies] = 0x9A
	poke16(ram, base+pmHP, 50)
	poke16(ram, base+pmMaxHP, 100)
	ram[base+pmLevel] = 40
	ram[base+pmType1] = 0x16
	ram[base+pmType2] = 0x03
	ram[base+pmStatus] = 0x20 // paralysis
	ram[base+pmMoves] = 33
	ram[base+pmPP] = 30

	base += partyMonSize
	ram[base+pmSpecies] = 0x01 // Rhydon's internal slot
	poke16(ram, base+pmHP, 999)
	poke16(ram, base+pmMaxHP, 120)
	ram[base+pmLevel] = 200 // clamped
	ram[base+pmStatus] = 0x08

	state := Decode(ram, "g", 0)

	require.Len(t, state.Party, 2)
	assert.Equal(t, "Venusaur", state.Party[0].Species)
	assert.Equal(t, "paralysis", state.Party[0].Status)
	assert.InDelta(t, 50.0, state.Party[0].HPPercent, 0.001)

	// HP clamps to maxHP; level clamps to 100.
	assert.Equal(t, "Rhydon", state.Party[1].Species)
	assert.Equal(t, 120, state.Party[1].HP)
	assert.Equal(t, 100, state.Party[1].Level)
	assert.Equal(t, "freeze", state.Party[1].Status)
}

func TestDecodeInventoryAndHMTip(t *testing.T) {
	ram := newRAM()
	ram[addrBagItemCount] = 2
	ram[addrBagItems] = itemHMFirst // HM01 Cut
	ram[addrBagItems+1] = 1
	ram[addrBagItems+2] = 0x14 // Potion
	ram[addrBagItems+3] = 3

	state := Decode(ram, "g", 0)

	require.Len(t, state.Inventory, 2)
	assert.Contains(t, state.Inventory[0].Name, "HM01")
	assert.Equal(t, 3, state.Inventory[1].Quantity)
	assert.Contains(t, state.Tip, "HM01")
}

func TestDecodeEmptyRAMIsSafe(t *testing.T) {
	state := Decode(nil, "g", 0)

	assert.Equal(t, protocol.PhaseOverworld, state.Phase)
	assert.Empty(t, state.Party)
	assert.Nil(t, state.Battle)
	require.NotNil(t, state.Overworld)
	assert.NotEmpty(t, state.Tip)
}

func TestDecodeDeterministic(t *testing.T) {
	ram := battleRAM()
	first := Decode(ram, "g", 9)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Decode(ram, "g", 9))
	}
}

func TestStatModifiers(t *testing.T) {
	ram := battleRAM()
	ram[addrPlayerStatMods] = 13  // +6 attack
	ram[addrPlayerStatMods+1] = 1 // -6 defense
	ram[addrPlayerStatMods+2] = 7 // neutral speed
	// Remaining bytes stay zero and decode as neutral.

	state := Decode(ram, "g", 0)
	require.NotNil(t, state.Battle)
	mods := state.Battle.Modifiers
	assert.Equal(t, 6, mods.Attack)
	assert.Equal(t, -6, mods.Defense)
	assert.Equal(t, 0, mods.Speed)
	assert.Equal(t, 0, mods.Evasion)
}

func TestEffectivenessChart(t *testing.T) {
	assert.Equal(t, 2.0, Effectiveness(TypeWater, TypeFire))
	assert.Equal(t, 0.5, Effectiveness(TypeFire, TypeWater))
	assert.Equal(t, 0.0, Effectiveness(TypeNormal, TypeGhost))
	assert.Equal(t, 0.0, Effectiveness(TypeGhost, TypePsychic)) // Gen-1 quirk
	assert.Equal(t, 2.0, Effectiveness(TypeBug, TypePoison))    // Gen-1 quirk
	assert.Equal(t, 1.0, Effectiveness(TypeIce, TypeFire))      // neutral in Gen-1

	// Dual-type stacking: Fire vs Grass/Poison.
	assert.Equal(t, 2.0, MoveEffectiveness(TypeFire, []string{TypeGrass, TypePoison}))
	// Quad: Grass vs Water/Ground.
	assert.Equal(t, 4.0, MoveEffectiveness(TypeGrass, []string{TypeWater, TypeGround}))
}
