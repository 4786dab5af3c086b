package entities

import (
	"errors"
	"math"
)

// ArticulationParamCount is the number of positional fields in a wire command.
const ArticulationParamCount = 9

// Constriction is a point along the vocal tract and its opening.
type Constriction struct {
	Index    float64 `json:"index" bson:"index"`
	Diameter float64 `json:"diameter" bson:"diameter"`
}

// ArticulationCommand is the full parameter set for one utterance.
// Field order matches the wire message: tongue, lips, the four shape
// parameters, then pitch.
type ArticulationCommand struct {
	Tongue Constriction `json:"tongue" bson:"tongue"`
	Lips   Constriction `json:"lips" bson:"lips"`
	Params [4]float64   `json:"params" bson:"params"`
	Pitch  float64      `json:"pitch" bson:"pitch"`
}

// Positional returns the command as its nine wire fields.
func (c ArticulationCommand) Positional() [ArticulationParamCount]float64 {
	return [ArticulationParamCount]float64{
		c.Tongue.Index, c.Tongue.Diameter,
		c.Lips.Index, c.Lips.Diameter,
		c.Params[0], c.Params[1], c.Params[2], c.Params[3],
		c.Pitch,
	}
}

// ArticulationFromPositional builds a command from its nine wire fields.
func ArticulationFromPositional(p [ArticulationParamCount]float64) ArticulationCommand {
	return ArticulationCommand{
		Tongue: Constriction{Index: p[0], Diameter: p[1]},
		Lips:   Constriction{Index: p[2], Diameter: p[3]},
		Params: [4]float64{p[4], p[5], p[6], p[7]},
		Pitch:  p[8],
	}
}

// Duration is the hold time in seconds carried by the second shape parameter.
func (c ArticulationCommand) Duration() float64 {
	return c.Params[1]
}

// Validate checks that every field is a finite number.
func (c ArticulationCommand) Validate() error {
	for _, v := range c.Positional() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("articulation fields must be finite")
		}
	}
	return nil
}
