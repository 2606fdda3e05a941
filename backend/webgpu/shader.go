package webgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/vgeom"
)

// VertexStub is a minimal vertex stage for one munged format: it declares
// every column as a shader input at the locations VertexLayouts assigns and
// passes the first point column through as the clip position. Pipelines
// built around it validate the vertex buffer layouts.
type VertexStub struct {
	Format     *vgeom.Format
	Layouts    []gputypes.VertexBufferLayout
	Source     string
	EntryPoint string
	SPIRV      []uint32
}

const stubEntryPoint = "vs_main"

// GenerateVertexStub returns the WGSL source of the vertex stub for f.
func GenerateVertexStub(f *vgeom.Format) (string, []gputypes.VertexBufferLayout, error) {
	layouts, err := VertexLayouts(f)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("struct VertexInput {\n")
	position := "vec4<f32>(0.0, 0.0, 0.0, 1.0)"
	points := make(map[*vgeom.Name]bool, len(f.Points()))
	for _, n := range f.Points() {
		points[n] = true
	}
	found := false
	for i, l := range layouts {
		cols := f.Array(i).Columns()
		for j, attr := range l.Attributes {
			field := fieldName(attr.ShaderLocation, cols[j].Name())
			typ, comps := wgslType(attr.Format)
			fmt.Fprintf(&sb, "    @location(%d) %s: %s,\n", attr.ShaderLocation, field, typ)
			if !found && points[cols[j].Name()] {
				position = clipPosition("v."+field, typ, comps)
				found = true
			}
		}
	}
	sb.WriteString("}\n\n")
	sb.WriteString("struct VertexOutput {\n    @builtin(position) position: vec4<f32>,\n}\n\n")
	sb.WriteString("@vertex\n")
	fmt.Fprintf(&sb, "fn %s(v: VertexInput) -> VertexOutput {\n", stubEntryPoint)
	sb.WriteString("    var out: VertexOutput;\n")
	fmt.Fprintf(&sb, "    out.position = %s;\n", position)
	sb.WriteString("    return out;\n}\n")
	return sb.String(), layouts, nil
}

// CompileVertexStub generates the stub for f and compiles it to SPIR-V.
func CompileVertexStub(f *vgeom.Format) (*VertexStub, error) {
	src, layouts, err := GenerateVertexStub(f)
	if err != nil {
		return nil, err
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompilation, err)
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return &VertexStub{
		Format:     f,
		Layouts:    layouts,
		Source:     src,
		EntryPoint: stubEntryPoint,
		SPIRV:      words,
	}, nil
}

// fieldName turns a column name into a WGSL identifier unique within the
// input struct.
func fieldName(loc uint32, n *vgeom.Name) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "a%d_", loc)
	for _, r := range n.String() {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// wgslType returns the shader type a vertex format is fetched as and its
// component count.
func wgslType(vf gputypes.VertexFormat) (string, int) {
	switch vf {
	case gputypes.VertexFormatFloat32:
		return "f32", 1
	case gputypes.VertexFormatFloat32x2, gputypes.VertexFormatUnorm8x2, gputypes.VertexFormatUnorm16x2:
		return "vec2<f32>", 2
	case gputypes.VertexFormatFloat32x3:
		return "vec3<f32>", 3
	case gputypes.VertexFormatFloat32x4, gputypes.VertexFormatUnorm8x4, gputypes.VertexFormatUnorm16x4:
		return "vec4<f32>", 4
	case gputypes.VertexFormatUint32:
		return "u32", 1
	case gputypes.VertexFormatUint32x2, gputypes.VertexFormatUint8x2, gputypes.VertexFormatUint16x2:
		return "vec2<u32>", 2
	case gputypes.VertexFormatUint32x3:
		return "vec3<u32>", 3
	default:
		return "vec4<u32>", 4
	}
}

// clipPosition widens a point input to a homogeneous float position.
func clipPosition(expr, typ string, comps int) string {
	if strings.Contains(typ, "u32") {
		if comps == 1 {
			expr = "f32(" + expr + ")"
		} else {
			expr = fmt.Sprintf("vec%d<f32>(%s)", comps, expr)
		}
	}
	switch comps {
	case 1:
		return "vec4<f32>(" + expr + ", 0.0, 0.0, 1.0)"
	case 2:
		return "vec4<f32>(" + expr + ", 0.0, 1.0)"
	case 3:
		return "vec4<f32>(" + expr + ", 1.0)"
	default:
		return expr
	}
}
