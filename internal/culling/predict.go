package culling

import "github.com/pspoerri/tileslicer/internal/geom"

// defaultPredictionWindow is the look-ahead used when dt isn't supplied.
const defaultPredictionWindow = 2.0 // seconds

// PredictLoading translates v's camera position by motion*dt and frustum
// culls at the predicted viewport, so a viewer can start prefetching tiles
// before the camera actually arrives. motion is a world-space velocity
// (units/second). dt <= 0 uses defaultPredictionWindow.
func PredictLoading(v Viewport, motion geom.Vector3, tiles []Tile, dt float32) []Tile {
	if dt <= 0 {
		dt = defaultPredictionWindow
	}
	predicted := v
	predicted.Position = v.Position.Add(motion.Scale(dt))
	return FrustumCull(predicted, tiles)
}
