// Package calculator считает уровни разворота (pivot points) по ценам
// открытия, максимума, минимума и закрытия предыдущего периода.
package calculator

import (
	"errors"
	"math"
)

var ErrInvalidRange = errors.New("high must not be below low, close must lie within [low, high]")

// OHLC — цены периода. Open в формулах не участвует.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Levels — точка разворота и уровни сопротивления R1..R4 и поддержки S1..S4.
type Levels struct {
	Pivot float64 `json:"pivot"`
	R1    float64 `json:"r1"`
	R2    float64 `json:"r2"`
	R3    float64 `json:"r3"`
	R4    float64 `json:"r4"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
	S4    float64 `json:"s4"`
}

// Result — уровни по обеим методикам.
type Result struct {
	Classic   Levels `json:"classic"`
	Camarilla Levels `json:"camarilla"`
}

// Validate проверяет, что цены конечны и образуют корректный диапазон.
func (p OHLC) Validate() error {
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("prices must be finite numbers")
		}
	}
	if p.High < p.Low || p.Close > p.High || p.Close < p.Low {
		return ErrInvalidRange
	}
	return nil
}

// Classic — классические уровни: PP = (H+L+C)/3, шаг уровней равен диапазону H-L.
func Classic(p OHLC) Levels {
	pp := (p.High + p.Low + p.Close) / 3
	rng := p.High - p.Low
	return Levels{
		Pivot: pp,
		R1:    2*pp - p.Low,
		S1:    2*pp - p.High,
		R2:    pp + rng,
		S2:    pp - rng,
		R3:    pp + 2*rng,
		S3:    pp - 2*rng,
		R4:    pp + 3*rng,
		S4:    pp - 3*rng,
	}
}

var camarillaMultipliers = [4]float64{1.1 / 12, 1.1 / 6, 1.1 / 4, 1.1 / 2}

// Camarilla — уровни Camarilla, отложенные от цены закрытия.
func Camarilla(p OHLC) Levels {
	rng := p.High - p.Low
	m := camarillaMultipliers
	return Levels{
		Pivot: (p.High + p.Low + p.Close) / 3,
		R1:    p.Close + rng*m[0],
		R2:    p.Close + rng*m[1],
		R3:    p.Close + rng*m[2],
		R4:    p.Close + rng*m[3],
		S1:    p.Close - rng*m[0],
		S2:    p.Close - rng*m[1],
		S3:    p.Close - rng*m[2],
		S4:    p.Close - rng*m[3],
	}
}

// Calculate проверяет цены и считает обе методики.
func Calculate(p OHLC) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	return Result{Classic: Classic(p), Camarilla: Camarilla(p)}, nil
}
