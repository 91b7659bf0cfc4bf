package main

import (
	"math/rand/v2"

	"github.com/snake-lounge/internal/domain"
)

const pointsPerFood = 10

var opposite = map[domain.Direction]domain.Direction{
	domain.DirectionUp:    domain.DirectionDown,
	domain.DirectionDown:  domain.DirectionUp,
	domain.DirectionLeft:  domain.DirectionRight,
	domain.DirectionRight: domain.DirectionLeft,
}

var directions = []domain.Direction{
	domain.DirectionUp,
	domain.DirectionDown,
	domain.DirectionLeft,
	domain.DirectionRight,
}

// game is a random-walk snake used to produce plausible snapshots. It has
// no opinion on how a real client plays; it only needs to move, eat and die.
type game struct {
	rng        *rand.Rand
	width      int
	height     int
	turnChance float64
	state      domain.GameState
}

func newGame(rng *rand.Rand, width, height int, mode domain.Mode, speed int) *game {
	cx, cy := width/2, height/2
	g := &game{
		rng:        rng,
		width:      width,
		height:     height,
		turnChance: 0.2,
		state: domain.GameState{
			Snake:     []domain.Position{{X: cx, Y: cy}, {X: cx - 1, Y: cy}, {X: cx - 2, Y: cy}},
			Direction: domain.DirectionRight,
			Status:    domain.StatusPlaying,
			Mode:      mode,
			Speed:     speed,
		},
	}
	g.placeFood()
	return g
}

// step advances one tick and reports whether the game is still running.
func (g *game) step() bool {
	if g.state.Status == domain.StatusGameOver {
		return false
	}
	if g.rng.Float64() < g.turnChance {
		g.turn()
	}

	head := g.next(g.state.Snake[0])
	if g.state.Mode == domain.ModeWalls && !g.inBounds(head) {
		g.state.Status = domain.StatusGameOver
		return false
	}
	eating := head == g.state.Food
	body := g.state.Snake
	if !eating {
		// the tail moves out of the way this tick
		body = body[:len(body)-1]
	}
	if contains(body, head) {
		g.state.Status = domain.StatusGameOver
		return false
	}

	g.state.Snake = append([]domain.Position{head}, body...)
	if eating {
		g.state.Score += pointsPerFood
		g.placeFood()
	}
	return true
}

func (g *game) turn() {
	d := directions[g.rng.IntN(len(directions))]
	if d != opposite[g.state.Direction] {
		g.state.Direction = d
	}
}

func (g *game) next(p domain.Position) domain.Position {
	switch g.state.Direction {
	case domain.DirectionUp:
		p.Y--
	case domain.DirectionDown:
		p.Y++
	case domain.DirectionLeft:
		p.X--
	case domain.DirectionRight:
		p.X++
	}
	if g.state.Mode == domain.ModePassThrough {
		p.X = (p.X + g.width) % g.width
		p.Y = (p.Y + g.height) % g.height
	}
	return p
}

func (g *game) inBounds(p domain.Position) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

func (g *game) placeFood() {
	free := g.width*g.height - len(g.state.Snake)
	if free <= 0 {
		return
	}
	for {
		p := domain.Position{X: g.rng.IntN(g.width), Y: g.rng.IntN(g.height)}
		if !contains(g.state.Snake, p) {
			g.state.Food = p
			return
		}
	}
}

// snapshot returns a copy safe to hand to an encoder on another goroutine
func (g *game) snapshot() domain.GameState {
	return g.state.Clone()
}

func contains(cells []domain.Position, p domain.Position) bool {
	for _, c := range cells {
		if c == p {
			return true
		}
	}
	return false
}
