package geom

// Color is a straight-alpha RGBA color with components in [0,1].
type Color struct {
	R, G, B, A float32
}

// Material is a PBR-ish material record. Textures are referenced by a
// stable id; their binary payloads flow through the TextureCodec
// collaborator, never through this struct.
type Material struct {
	ID              MaterialID
	BaseColor       Color
	TextureID       string // "" if untextured
	HasTexture      bool
	Roughness       float32 // only meaningful if HasPBR
	Metallic        float32
	HasPBR          bool
}

// DefaultMaterial returns an opaque light-grey material with no texture
// and no PBR values.
func DefaultMaterial() Material {
	return Material{BaseColor: Color{R: 0.8, G: 0.8, B: 0.8, A: 1}}
}
