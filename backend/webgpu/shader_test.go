package webgpu

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/vgeom"
)

func TestVertexLayoutsLocations(t *testing.T) {
	f := vgeom.NewFormat(
		vgeom.NewArrayFormat(vgeom.ColumnSpec{Name: vgeom.NameVertex, NumComponents: 3, Type: vgeom.Float32, Contents: vgeom.ContentsPoint}),
		vgeom.NewArrayFormat(
			vgeom.ColumnSpec{Name: vgeom.NameNormal, NumComponents: 3, Type: vgeom.Float32, Contents: vgeom.ContentsVector},
			vgeom.ColumnSpec{Name: vgeom.NameTexcoord, NumComponents: 2, Type: vgeom.Float32, Contents: vgeom.ContentsTexcoord},
		),
	)
	layouts, err := VertexLayouts(f)
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	assert.Equal(t, uint64(12), layouts[0].ArrayStride)
	assert.Equal(t, uint32(0), layouts[0].Attributes[0].ShaderLocation)

	assert.Equal(t, uint64(20), layouts[1].ArrayStride)
	require.Len(t, layouts[1].Attributes, 2)
	assert.Equal(t, uint32(1), layouts[1].Attributes[0].ShaderLocation)
	assert.Equal(t, uint32(2), layouts[1].Attributes[1].ShaderLocation)
	assert.Equal(t, gputypes.VertexFormatFloat32x2, layouts[1].Attributes[1].Format)
	assert.Equal(t, uint64(12), layouts[1].Attributes[1].Offset)
	assert.Equal(t, gputypes.VertexStepModeVertex, layouts[1].StepMode)
}

func TestVertexLayoutsUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		build func() *vgeom.ArrayFormat
	}{
		{"three bytes", func() *vgeom.ArrayFormat {
			return vgeom.NewArrayFormat(vgeom.ColumnSpec{Name: nameTint, NumComponents: 3, Type: vgeom.Uint8, Contents: vgeom.ContentsColor})
		}},
		{"packed dabc", func() *vgeom.ArrayFormat {
			return vgeom.NewArrayFormat(vgeom.ColumnSpec{Name: vgeom.NameColor, NumComponents: 1, Type: vgeom.PackedDABC, Contents: vgeom.ContentsColor})
		}},
		{"misaligned", func() *vgeom.ArrayFormat {
			a := vgeom.NewArrayFormat()
			a.AddColumn(vgeom.NameVertex, 3, vgeom.Float32, vgeom.ContentsPoint, 2)
			a.SetPadTo(4)
			return a
		}},
		{"odd stride", func() *vgeom.ArrayFormat {
			a := vgeom.NewArrayFormat()
			a.AddColumn(vgeom.NameVertex, 3, vgeom.Float32, vgeom.ContentsPoint, 0)
			a.SetStride(14)
			return a
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VertexLayouts(vgeom.NewFormat(tt.build()))
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestGenerateVertexStub(t *testing.T) {
	src, layouts, err := GenerateVertexStub(vgeom.FormatV3N3())
	require.NoError(t, err)
	require.Len(t, layouts, 1)

	assert.Contains(t, src, "@location(0) a0_vertex: vec3<f32>,")
	assert.Contains(t, src, "@location(1) a1_normal: vec3<f32>,")
	assert.Contains(t, src, "fn vs_main(v: VertexInput) -> VertexOutput")
	assert.Contains(t, src, "out.position = vec4<f32>(v.a0_vertex, 1.0);")
}

func TestGenerateVertexStubWithoutPoints(t *testing.T) {
	f := vgeom.RegisterFormat(vgeom.NewFormat(vgeom.NewArrayFormat(
		vgeom.ColumnSpec{Name: vgeom.MakeName("uv.0"), NumComponents: 2, Type: vgeom.Float32, Contents: vgeom.ContentsTexcoord},
		vgeom.ColumnSpec{Name: vgeom.NameTransformIndex, NumComponents: 4, Type: vgeom.Uint8, Contents: vgeom.ContentsIndex},
	)))
	src, _, err := GenerateVertexStub(f)
	require.NoError(t, err)
	assert.Contains(t, src, "a0_uv_0: vec2<f32>")
	assert.Contains(t, src, "a1_transform_index: vec4<u32>")
	assert.Contains(t, src, "out.position = vec4<f32>(0.0, 0.0, 0.0, 1.0);")
}

func TestGenerateVertexStubUnsupported(t *testing.T) {
	_, _, err := GenerateVertexStub(vgeom.FormatV3CP())
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "packed DirectX colours must be munged first")
}

func TestClipPosition(t *testing.T) {
	assert.Equal(t, "vec4<f32>(p, 0.0, 1.0)", clipPosition("p", "vec2<f32>", 2))
	assert.Equal(t, "vec4<f32>(f32(p), 0.0, 0.0, 1.0)", clipPosition("p", "u32", 1))
	assert.Equal(t, "vec4<f32>(p)", clipPosition("p", "vec4<u32>", 4))
	assert.Equal(t, "p", clipPosition("p", "vec4<f32>", 4))
}

// compileStub compiles the stub of f, skipping the test where the shader
// compiler lacks a feature.
func compileStub(t *testing.T, f *vgeom.Format) *VertexStub {
	t.Helper()
	vs, err := CompileVertexStub(f)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("CompileVertexStub failed: %v", err)
	}
	return vs
}

func TestCompileVertexStub(t *testing.T) {
	f := NewMunger(nil, MungerConfig{}).MungeFormat(vgeom.FormatV3CP())
	vs := compileStub(t, f)

	require.NotEmpty(t, vs.SPIRV)
	assert.Equal(t, uint32(0x07230203), vs.SPIRV[0], "SPIR-V magic number")
	assert.Equal(t, "vs_main", vs.EntryPoint)
	assert.Same(t, f, vs.Format)
	assert.Contains(t, vs.Source, "a1_color: vec4<f32>")
}
