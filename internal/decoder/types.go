package decoder

// The fifteen Gen-1 types.
const (
	TypeNormal   = "Normal"
	TypeFighting = "Fighting"
	TypeFlying   = "Flying"
	TypePoison   = "Poison"
	TypeGround   = "Ground"
	TypeRock     = "Rock"
	TypeBug      = "Bug"
	TypeGhost    = "Ghost"
	TypeFire     = "Fire"
	TypeWater    = "Water"
	TypeGrass    = "Grass"
	TypeElectric = "Electric"
	TypePsychic  = "Psychic"
	TypeIce      = "Ice"
	TypeDragon   = "Dragon"
)

// typeCodes maps the in-RAM type byte to its name. The ROM leaves a gap at
// 0x06 (the unused Bird type) and jumps to 0x14 for the special types.
var typeCodes = map[byte]string{
	0x00: TypeNormal,
	0x01: TypeFighting,
	0x02: TypeFlying,
	0x03: TypePoison,
	0x04: TypeGround,
	0x05: TypeRock,
	0x07: TypeBug,
	0x08: TypeGhost,
	0x14: TypeFire,
	0x15: TypeWater,
	0x16: TypeGrass,
	0x17: TypeElectric,
	0x18: TypePsychic,
	0x19: TypeIce,
	0x1A: TypeDragon,
}

// TypeName resolves a type byte, defaulting to Normal for glitch values.
func TypeName(code byte) string {
	if name, ok := typeCodes[code]; ok {
		return name
	}
	return TypeNormal
}

// effectiveness holds every non-neutral entry of the Gen-1 type chart,
// including its quirks: Ghost does nothing to Psychic, Bug is super
// effective against Poison (and vice versa), and Ice hits Fire neutrally.
var effectiveness = map[[2]string]float64{
	{TypeNormal, TypeRock}:  0.5,
	{TypeNormal, TypeGhost}: 0,

	{TypeFighting, TypeNormal}:  2,
	{TypeFighting, TypeRock}:    2,
	{TypeFighting, TypeIce}:     2,
	{TypeFighting, TypePoison}:  0.5,
	{TypeFighting, TypeFlying}:  0.5,
	{TypeFighting, TypePsychic}: 0.5,
	{TypeFighting, TypeBug}:     0.5,
	{TypeFighting, TypeGhost}:   0,

	{TypeFlying, TypeFighting}: 2,
	{TypeFlying, TypeBug}:      2,
	{TypeFlying, TypeGrass}:    2,
	{TypeFlying, TypeRock}:     0.5,
	{TypeFlying, TypeElectric}: 0.5,

	{TypePoison, TypeGrass}:  2,
	{TypePoison, TypeBug}:    2,
	{TypePoison, TypePoison}: 0.5,
	{TypePoison, TypeGround}: 0.5,
	{TypePoison, TypeRock}:   0.5,
	{TypePoison, TypeGhost}:  0.5,

	{TypeGround, TypeFire}:     2,
	{TypeGround, TypeElectric}: 2,
	{TypeGround, TypePoison}:   2,
	{TypeGround, TypeRock}:     2,
	{TypeGround, TypeGrass}:    0.5,
	{TypeGround, TypeBug}:      0.5,
	{TypeGround, TypeFlying}:   0,

	{TypeRock, TypeFire}:     2,
	{TypeRock, TypeIce}:      2,
	{TypeRock, TypeFlying}:   2,
	{TypeRock, TypeBug}:      2,
	{TypeRock, TypeFighting}: 0.5,
	{TypeRock, TypeGround}:   0.5,

	{TypeBug, TypeGrass}:    2,
	{TypeBug, TypePsychic}:  2,
	{TypeBug, TypePoison}:   2,
	{TypeBug, TypeFire}:     0.5,
	{TypeBug, TypeFighting}: 0.5,
	{TypeBug, TypeFlying}:   0.5,
	{TypeBug, TypeGhost}:    0.5,

	{TypeGhost, TypeGhost}:   2,
	{TypeGhost, TypeNormal}:  0,
	{TypeGhost, TypePsychic}: 0,

	{TypeFire, TypeGrass}:  2,
	{TypeFire, TypeIce}:    2,
	{TypeFire, TypeBug}:    2,
	{TypeFire, TypeFire}:   0.5,
	{TypeFire, TypeWater}:  0.5,
	{TypeFire, TypeRock}:   0.5,
	{TypeFire, TypeDragon}: 0.5,

	{TypeWater, TypeFire}:   2,
	{TypeWater, TypeGround}: 2,
	{TypeWater, TypeRock}:   2,
	{TypeWater, TypeWater}:  0.5,
	{TypeWater, TypeGrass}:  0.5,
	{TypeWater, TypeDragon}: 0.5,

	{TypeGrass, TypeWater}:  2,
	{TypeGrass, TypeGround}: 2,
	{TypeGrass, TypeRock}:   2,
	{TypeGrass, TypeFire}:   0.5,
	{TypeGrass, TypeGrass}:  0.5,
	{TypeGrass, TypePoison}: 0.5,
	{TypeGrass, TypeFlying}: 0.5,
	{TypeGrass, TypeBug}:    0.5,
	{TypeGrass, TypeDragon}: 0.5,

	{TypeElectric, TypeWater}:    2,
	{TypeElectric, TypeFlying}:   2,
	{TypeElectric, TypeElectric}: 0.5,
	{TypeElectric, TypeGrass}:    0.5,
	{TypeElectric, TypeDragon}:   0.5,
	{TypeElectric, TypeGround}:   0,

	{TypePsychic, TypeFighting}: 2,
	{TypePsychic, TypePoison}:   2,
	{TypePsychic, TypePsychic}:  0.5,

	{TypeIce, TypeGrass}:  2,
	{TypeIce, TypeGround}: 2,
	{TypeIce, TypeFlying}: 2,
	{TypeIce, TypeDragon}: 2,
	{TypeIce, TypeWater}:  0.5,
	{TypeIce, TypeIce}:    0.5,

	{TypeDragon, TypeDragon}: 2,
}

// Effectiveness returns the Gen-1 multiplier of an attacking type against
// one defending type.
func Effectiveness(attacker, defender string) float64 {
	if mult, ok := effectiveness[[2]string{attacker, defender}]; ok {
		return mult
	}
	return 1
}

// MoveEffectiveness multiplies a move's type against each of the defender's
// types.
func MoveEffectiveness(moveType string, defenderTypes []string) float64 {
	mult := 1.0
	for _, dt := range defenderTypes {
		mult *= Effectiveness(moveType, dt)
	}
	return mult
}
