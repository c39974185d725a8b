package vision

// Scene is a flat collider list rebuilt by the simulation every tick.
type Scene struct {
	entities []Entity
	walls    []Wall
}

// NewScene creates a scene with static walls.
func NewScene(walls []Wall) *Scene {
	return &Scene{walls: walls}
}

// Reset drops the dynamic entities and keeps the walls.
func (s *Scene) Reset() {
	s.entities = s.entities[:0]
}

// Add registers an entity collider.
func (s *Scene) Add(e Entity) {
	s.entities = append(s.entities, e)
}

// Entities returns every registered entity.
func (s *Scene) Entities() []Entity {
	return s.entities
}

// Walls returns the static walls.
func (s *Scene) Walls() []Wall {
	return s.walls
}

// Colliders implements Source.
func (s *Scene) Colliders(layer string) ([]Entity, []Wall) {
	var (
		es []Entity
		ws []Wall
	)
	for _, e := range s.entities {
		if e.Layer == layer {
			es = append(es, e)
		}
	}
	for _, w := range s.walls {
		if w.Layer == layer {
			ws = append(ws, w)
		}
	}
	return es, ws
}
