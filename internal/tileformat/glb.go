package tileformat

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

const (
	glbMagic       uint32 = 0x46546C67 // "glTF"
	glbVersion     uint32 = 2
	glbChunkJSON   uint32 = 0x4E4F534A // "JSON"
	glbChunkBIN    uint32 = 0x004E4942 // "BIN\0"
	glbHeaderBytes        = 12
	glbChunkHdr           = 8
)

// glbGenerator emits binary (or, with textJSON set, plain-text) glTF 2.0
// buffers: one interleaved-free BIN chunk holding positions/normals/UVs/
// indices per material-grouped primitive, and a JSON chunk describing the
// scene graph. Grounded on the accessor/bufferView layout the reference
// point-cloud tiler uses for its own binary payloads
// (other_examples gocesiumtiler io-consumer.go), generalized from points to
// indexed triangle meshes.
type glbGenerator struct {
	maxBytes           int
	textJSON           bool
	placeholderOnEmpty bool
}

func (g *glbGenerator) FileExtension() string {
	if g.textJSON {
		return "gltf"
	}
	return "glb"
}

type gltfAsset struct {
	Version string `json:"version"`
}

type gltfBuffer struct {
	ByteLength int    `json:"byteLength"`
	URI        string `json:"uri,omitempty"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

type gltfAccessor struct {
	BufferView    int       `json:"bufferView"`
	ByteOffset    int       `json:"byteOffset,omitempty"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type gltfPrimitiveAttrs struct {
	POSITION   int  `json:"POSITION"`
	NORMAL     *int `json:"NORMAL,omitempty"`
	TEXCOORD0  *int `json:"TEXCOORD_0,omitempty"`
}

type gltfPrimitive struct {
	Attributes gltfPrimitiveAttrs `json:"attributes"`
	Indices    int                `json:"indices"`
	Material   *int               `json:"material,omitempty"`
	Mode       int                `json:"mode,omitempty"`
}

type gltfMesh struct {
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfNode struct {
	Mesh int `json:"mesh"`
}

type gltfScene struct {
	Nodes []int `json:"nodes"`
}

type gltfMaterialPBR struct {
	BaseColorFactor [4]float64 `json:"baseColorFactor"`
	RoughnessFactor float64    `json:"roughnessFactor"`
	MetallicFactor  float64    `json:"metallicFactor"`
}

type gltfMaterial struct {
	Name                 string          `json:"name,omitempty"`
	PBRMetallicRoughness gltfMaterialPBR `json:"pbrMetallicRoughness"`
}

type gltfDoc struct {
	Asset       gltfAsset        `json:"asset"`
	Scene       int              `json:"scene"`
	Scenes      []gltfScene      `json:"scenes"`
	Nodes       []gltfNode       `json:"nodes"`
	Meshes      []gltfMesh       `json:"meshes"`
	Materials   []gltfMaterial   `json:"materials,omitempty"`
	Accessors   []gltfAccessor   `json:"accessors"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Buffers     []gltfBuffer     `json:"buffers"`
}

const (
	componentTypeUnsignedShort = 5123
	componentTypeUnsignedInt   = 5125
	componentTypeFloat         = 5126
	targetArrayBuffer          = 34962
	targetElementArrayBuffer   = 34963
	primitiveModeTriangles     = 4
	primitiveModeLines         = 1
)

// Generate builds a GLB (or glTF-with-JSON-data-URI) buffer from
// triangles, recentering them on bounds.Center() so the tile carries
// RTC_CENTER-equivalent local coordinates.
func (g *glbGenerator) Generate(triangles []geom.Triangle, bounds geom.BoundingBox3D, materials map[geom.MaterialID]geom.Material) ([]byte, error) {
	center := bounds.Center()

	if len(triangles) == 0 {
		if !g.placeholderOnEmpty {
			return nil, errEmptyInput("tileformat.glbGenerator.Generate")
		}
		return g.generateEmptyPlaceholder()
	}

	groups := groupByMaterial(triangles)

	bin := getBuffer(len(triangles) * 3 * 32)
	defer putBuffer(bin)

	var accessors []gltfAccessor
	var views []gltfBufferView
	var prims []gltfPrimitive
	var matList []gltfMaterial
	matIndex := map[geom.MaterialID]int{}

	for _, matID := range groups.order {
		tris := groups.byMaterial[matID]
		prim, newBin, newAccessors, newViews := buildPrimitive(tris, center, &bin, len(views), len(accessors))
		accessors = append(accessors, newAccessors...)
		views = append(views, newViews...)
		bin = newBin

		if mi, ok := matIndex[matID]; ok {
			prim.Material = &mi
		} else if mat, ok := materials[matID]; ok {
			idx := len(matList)
			matList = append(matList, materialToGLTF(mat))
			matIndex[matID] = idx
			prim.Material = &idx
		}
		prims = append(prims, prim)
	}

	doc := gltfDoc{
		Asset:       gltfAsset{Version: "2.0"},
		Scene:       0,
		Scenes:      []gltfScene{{Nodes: []int{0}}},
		Nodes:       []gltfNode{{Mesh: 0}},
		Meshes:      []gltfMesh{{Primitives: prims}},
		Materials:   matList,
		Accessors:   accessors,
		BufferViews: views,
		Buffers:     []gltfBuffer{{ByteLength: len(bin)}},
	}

	return g.assemble(doc, bin)
}

type materialGroups struct {
	order      []geom.MaterialID
	byMaterial map[geom.MaterialID][]geom.Triangle
}

func groupByMaterial(triangles []geom.Triangle) materialGroups {
	g := materialGroups{byMaterial: map[geom.MaterialID][]geom.Triangle{}}
	for _, t := range triangles {
		if _, ok := g.byMaterial[t.Material]; !ok {
			g.order = append(g.order, t.Material)
		}
		g.byMaterial[t.Material] = append(g.byMaterial[t.Material], t)
	}
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })
	return g
}

func materialToGLTF(m geom.Material) gltfMaterial {
	roughness, metallic := float64(0.9), float64(0.0)
	if m.HasPBR {
		roughness, metallic = float64(m.Roughness), float64(m.Metallic)
	}
	return gltfMaterial{
		PBRMetallicRoughness: gltfMaterialPBR{
			BaseColorFactor: [4]float64{float64(m.BaseColor.R), float64(m.BaseColor.G), float64(m.BaseColor.B), float64(m.BaseColor.A)},
			RoughnessFactor: roughness,
			MetallicFactor:  metallic,
		},
	}
}

// buildPrimitive appends one material group's vertex/index data to bin and
// returns the primitive referencing the new accessors/bufferViews (indices
// offset by the counts already emitted for earlier groups).
func buildPrimitive(triangles []geom.Triangle, center geom.Vector3, bin *[]byte, viewBase, accessorBase int) (gltfPrimitive, []byte, []gltfAccessor, []gltfBufferView) {
	n := len(triangles) * 3
	hasNormals, hasUVs := true, true
	for _, t := range triangles {
		if !t.HasNormals {
			hasNormals = false
		}
		if !t.HasUVs {
			hasUVs = false
		}
	}

	posMin := [3]float64{}
	posMax := [3]float64{}
	first := true

	out := *bin
	posOffset := len(out)
	for _, t := range triangles {
		r := t.Recentered(center)
		for i := 0; i < 3; i++ {
			v := r.V[i]
			out = appendFloat32(out, v.X, v.Y, v.Z)
			if first {
				posMin = [3]float64{float64(v.X), float64(v.Y), float64(v.Z)}
				posMax = posMin
				first = false
			} else {
				posMin[0], posMax[0] = minmax(posMin[0], posMax[0], float64(v.X))
				posMin[1], posMax[1] = minmax(posMin[1], posMax[1], float64(v.Y))
				posMin[2], posMax[2] = minmax(posMin[2], posMax[2], float64(v.Z))
			}
		}
	}
	posLen := len(out) - posOffset

	var normOffset, normLen int
	if hasNormals {
		normOffset = len(out)
		for _, t := range triangles {
			for i := 0; i < 3; i++ {
				nv := t.Normal[i]
				out = appendFloat32(out, nv.X, nv.Y, nv.Z)
			}
		}
		normLen = len(out) - normOffset
	}

	var uvOffset, uvLen int
	if hasUVs {
		uvOffset = len(out)
		for _, t := range triangles {
			for i := 0; i < 3; i++ {
				uv := t.UV[i]
				out = appendFloat32(out, uv.X, uv.Y)
			}
		}
		uvLen = len(out) - uvOffset
	}

	idxOffset := len(out)
	wide := n > 65535
	if wide {
		for i := 0; i < n; i++ {
			out = binary.LittleEndian.AppendUint32(out, uint32(i))
		}
	} else {
		for i := 0; i < n; i++ {
			out = binary.LittleEndian.AppendUint16(out, uint16(i))
		}
	}
	idxLen := len(out) - idxOffset

	views := []gltfBufferView{
		{Buffer: 0, ByteOffset: posOffset, ByteLength: posLen, Target: targetArrayBuffer},
	}
	accessors := []gltfAccessor{
		{BufferView: viewBase, ComponentType: componentTypeFloat, Count: n, Type: "VEC3",
			Min: posMin[:], Max: posMax[:]},
	}
	prim := gltfPrimitive{
		Attributes: gltfPrimitiveAttrs{POSITION: accessorBase},
		Mode:       primitiveModeTriangles,
	}

	next := accessorBase + 1
	nextView := viewBase + 1
	if hasNormals {
		views = append(views, gltfBufferView{Buffer: 0, ByteOffset: normOffset, ByteLength: normLen, Target: targetArrayBuffer})
		accessors = append(accessors, gltfAccessor{BufferView: nextView, ComponentType: componentTypeFloat, Count: n, Type: "VEC3"})
		idx := next
		prim.Attributes.NORMAL = &idx
		next++
		nextView++
	}
	if hasUVs {
		views = append(views, gltfBufferView{Buffer: 0, ByteOffset: uvOffset, ByteLength: uvLen, Target: targetArrayBuffer})
		accessors = append(accessors, gltfAccessor{BufferView: nextView, ComponentType: componentTypeFloat, Count: n, Type: "VEC2"})
		idx := next
		prim.Attributes.TEXCOORD0 = &idx
		next++
		nextView++
	}

	idxComponentType := componentTypeUnsignedShort
	if wide {
		idxComponentType = componentTypeUnsignedInt
	}
	views = append(views, gltfBufferView{Buffer: 0, ByteOffset: idxOffset, ByteLength: idxLen, Target: targetElementArrayBuffer})
	accessors = append(accessors, gltfAccessor{BufferView: nextView, ComponentType: idxComponentType, Count: n, Type: "SCALAR"})
	prim.Indices = next

	return prim, out, accessors, views
}

func minmax(curMin, curMax, v float64) (float64, float64) {
	if v < curMin {
		curMin = v
	}
	if v > curMax {
		curMax = v
	}
	return curMin, curMax
}

func appendFloat32(b []byte, vals ...float32) []byte {
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

// generateEmptyPlaceholder emits an 8-vertex wire-cube (LINES primitive) so
// an empty tile still resolves to a valid, tiny glTF asset instead of the
// engine skipping the tile entirely.
func (g *glbGenerator) generateEmptyPlaceholder() ([]byte, error) {
	corners := geom.BoundingBox3D{Min: geom.Vector3{X: -0.5, Y: -0.5, Z: -0.5}, Max: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5}}.Corners()
	bin := getBuffer(8*12 + 24*2)
	defer putBuffer(bin)

	posMin := [3]float64{-0.5, -0.5, -0.5}
	posMax := [3]float64{0.5, 0.5, 0.5}
	for _, c := range corners {
		bin = appendFloat32(bin, c.X, c.Y, c.Z)
	}
	idxOffset := len(bin)
	edges := [12][2]uint16{
		{0, 1}, {0, 2}, {0, 4}, {1, 3}, {1, 5}, {2, 3},
		{2, 6}, {3, 7}, {4, 5}, {4, 6}, {5, 7}, {6, 7},
	}
	for _, e := range edges {
		bin = binary.LittleEndian.AppendUint16(bin, e[0])
		bin = binary.LittleEndian.AppendUint16(bin, e[1])
	}
	idxLen := len(bin) - idxOffset

	doc := gltfDoc{
		Asset:  gltfAsset{Version: "2.0"},
		Scene:  0,
		Scenes: []gltfScene{{Nodes: []int{0}}},
		Nodes:  []gltfNode{{Mesh: 0}},
		Meshes: []gltfMesh{{Primitives: []gltfPrimitive{{
			Attributes: gltfPrimitiveAttrs{POSITION: 0},
			Indices:    1,
			Mode:       primitiveModeLines,
		}}}},
		Accessors: []gltfAccessor{
			{BufferView: 0, ComponentType: componentTypeFloat, Count: 8, Type: "VEC3", Min: posMin[:], Max: posMax[:]},
			{BufferView: 1, ComponentType: componentTypeUnsignedShort, Count: 24, Type: "SCALAR"},
		},
		BufferViews: []gltfBufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: idxOffset, Target: targetArrayBuffer},
			{Buffer: 0, ByteOffset: idxOffset, ByteLength: idxLen, Target: targetElementArrayBuffer},
		},
		Buffers: []gltfBuffer{{ByteLength: len(bin)}},
	}
	return g.assemble(doc, bin)
}

func (g *glbGenerator) assemble(doc gltfDoc, bin []byte) ([]byte, error) {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tileformat.glbGenerator.Generate", fmt.Errorf("marshal glTF JSON: %w", err))
	}

	maxBytes := g.maxBytes
	if maxBytes <= 0 {
		maxBytes = MaxTileBytes
	}

	if g.textJSON {
		if len(doc.Buffers) > 0 {
			doc.Buffers[0].URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin)
			if jsonBytes, err = json.Marshal(doc); err != nil {
				return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tileformat.glbGenerator.Generate", fmt.Errorf("marshal glTF JSON: %w", err))
			}
		}
		if err := checkSize(len(jsonBytes), maxBytes, "tileformat.glbGenerator.Generate"); err != nil {
			return nil, err
		}
		return jsonBytes, nil
	}

	jsonPadded := padBytes(jsonBytes, 0x20)
	binPadded := padBytes(bin, 0x00)

	total := glbHeaderBytes + glbChunkHdr + len(jsonPadded) + glbChunkHdr + len(binPadded)
	if err := checkSize(total, maxBytes, "tileformat.glbGenerator.Generate"); err != nil {
		return nil, err
	}

	out := make([]byte, 0, total)
	out = binary.LittleEndian.AppendUint32(out, glbMagic)
	out = binary.LittleEndian.AppendUint32(out, glbVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))

	out = binary.LittleEndian.AppendUint32(out, uint32(len(jsonPadded)))
	out = binary.LittleEndian.AppendUint32(out, glbChunkJSON)
	out = append(out, jsonPadded...)

	out = binary.LittleEndian.AppendUint32(out, uint32(len(binPadded)))
	out = binary.LittleEndian.AppendUint32(out, glbChunkBIN)
	out = append(out, binPadded...)

	return out, nil
}

func padBytes(b []byte, fill byte) []byte {
	n := pad4(len(b))
	if n == 0 {
		return b
	}
	return append(append([]byte{}, b...), bytes.Repeat([]byte{fill}, n)...)
}
