package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/robot-workbench/backend/internal/models"
)

const armBotURDF = `<?xml version="1.0"?>
<robot name="arm_bot">
  <material name="shell"><color rgba="1 0 0 1"/></material>
  <link name="base">
    <visual>
      <origin xyz="0 0 0.05"/>
      <geometry><box size="0.2 0.2 0.1"/></geometry>
      <material name="shell"/>
    </visual>
    <collision>
      <geometry><box size="0.2 0.2 0.1"/></geometry>
    </collision>
    <inertial>
      <mass value="1.5"/>
      <inertia ixx="0.01" ixy="0" ixz="0" iyy="0.01" iyz="0" izz="0.02"/>
    </inertial>
  </link>
  <link name="upper_arm">
    <visual>
      <geometry><cylinder radius="0.03" length="0.25"/></geometry>
      <material><color rgba="0 1 0 1"/></material>
    </visual>
  </link>
  <link name="wrist">
    <visual>
      <geometry><mesh filename="package://arm_bot/meshes/wrist.stl" scale="0.001"/></geometry>
    </visual>
  </link>
  <joint name="shoulder" type="revolute">
    <parent link="base"/>
    <child link="upper_arm"/>
    <origin xyz="0 0 0.1"/>
    <axis xyz="0 1 0"/>
    <limit lower="-2.5" upper="2.5" effort="50" velocity="3"/>
    <dynamics damping="0.1"/>
    <hardware motor="dynamixel" id="3" direction="-1" armature="0.02"/>
  </joint>
  <joint name="wrist_joint">
    <parent link="upper_arm"/>
    <child link="wrist"/>
  </joint>
  <gazebo reference="wrist"><material>Gazebo/Grey</material></gazebo>
</robot>`

func TestURDFDecoder_Decode(t *testing.T) {
	decoder := NewURDFDecoder()
	robot, warnings, err := decoder.Decode([]byte(armBotURDF))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if robot.Name != "arm_bot" {
		t.Errorf("robot name = %q, want arm_bot", robot.Name)
	}
	if robot.Root != "base" {
		t.Errorf("root = %q, want base", robot.Root)
	}
	if len(robot.Links) != 3 || len(robot.Joints) != 2 {
		t.Fatalf("got %d links / %d joints, want 3 / 2", len(robot.Links), len(robot.Joints))
	}

	t.Run("box link with named material", func(t *testing.T) {
		base := robot.Links["base"]
		if base.Visual.Type != models.GeomBox {
			t.Fatalf("geometry type = %v, want box", base.Visual.Type)
		}
		if base.Visual.Dims != (models.Vec3{0.2, 0.2, 0.1}) {
			t.Errorf("dims = %v", base.Visual.Dims)
		}
		if base.Visual.Origin.XYZ != (models.Vec3{0, 0, 0.05}) {
			t.Errorf("origin = %v", base.Visual.Origin.XYZ)
		}
		if base.Visual.Color != "#ff0000" {
			t.Errorf("color = %q, want #ff0000 via global material", base.Visual.Color)
		}
		if base.Collision == nil {
			t.Fatal("collision geometry missing")
		}
		if base.Collision.Color != "" {
			t.Errorf("collision should carry no color, got %q", base.Collision.Color)
		}
		if base.Inertial.Mass != 1.5 {
			t.Errorf("mass = %v, want 1.5", base.Inertial.Mass)
		}
	})

	t.Run("inline material wins", func(t *testing.T) {
		if got := robot.Links["upper_arm"].Visual.Color; got != "#00ff00" {
			t.Errorf("color = %q, want #00ff00", got)
		}
	})

	t.Run("mesh filename is stripped to base name", func(t *testing.T) {
		wrist := robot.Links["wrist"].Visual
		if wrist.Type != models.GeomMesh {
			t.Fatalf("geometry type = %v, want mesh", wrist.Type)
		}
		if wrist.MeshFile != "wrist.stl" {
			t.Errorf("mesh file = %q, want wrist.stl", wrist.MeshFile)
		}
		if wrist.MeshScale != (models.Vec3{0.001, 0.001, 0.001}) {
			t.Errorf("mesh scale = %v, want uniform 0.001", wrist.MeshScale)
		}
	})

	t.Run("gazebo reference resolves through the builtin palette", func(t *testing.T) {
		if got := robot.Links["wrist"].Visual.Color; got != "#808080" {
			t.Errorf("color = %q, want #808080 from Gazebo/Grey", got)
		}
	})

	t.Run("explicit joint fields", func(t *testing.T) {
		shoulder := robot.Joints["shoulder"]
		if shoulder.Type != models.JointRevolute {
			t.Errorf("type = %v", shoulder.Type)
		}
		if shoulder.Parent != "base" || shoulder.Child != "upper_arm" {
			t.Errorf("endpoints = %s -> %s", shoulder.Parent, shoulder.Child)
		}
		if shoulder.Axis != (models.Vec3{0, 1, 0}) {
			t.Errorf("axis = %v", shoulder.Axis)
		}
		if shoulder.Limits != (models.Limits{Lower: -2.5, Upper: 2.5, Effort: 50, Velocity: 3}) {
			t.Errorf("limits = %+v", shoulder.Limits)
		}
		if shoulder.Dynamics.Damping != 0.1 {
			t.Errorf("damping = %v", shoulder.Dynamics.Damping)
		}
		hw := shoulder.Hardware
		if hw == nil {
			t.Fatal("hardware binding missing")
		}
		if hw.MotorType != "dynamixel" || hw.MotorID != "3" || hw.Direction != -1 || hw.Armature != 0.02 {
			t.Errorf("hardware = %+v", hw)
		}
	})

	t.Run("omitted joint attributes take documented defaults", func(t *testing.T) {
		wj := robot.Joints["wrist_joint"]
		if wj.Type != models.JointRevolute {
			t.Errorf("default type = %v, want revolute", wj.Type)
		}
		if wj.Axis != (models.Vec3{0, 0, 1}) {
			t.Errorf("default axis = %v, want {0 0 1}", wj.Axis)
		}
		want := models.Limits{Lower: -1.57, Upper: 1.57, Effort: 100, Velocity: 10}
		if wj.Limits != want {
			t.Errorf("default limits = %+v, want %+v", wj.Limits, want)
		}
		if !reflect.DeepEqual(wj.Hardware, models.DefaultHardware()) {
			t.Errorf("default hardware = %+v", wj.Hardware)
		}
	})
}

func TestURDFDecoder_DefaultColor(t *testing.T) {
	input := `<robot name="r">
  <link name="only">
    <visual><geometry><sphere radius="0.1"/></geometry></visual>
  </link>
</robot>`
	decoder := NewURDFDecoder()
	robot, _, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := robot.Links["only"].Visual.Color; got != "#0000ff" {
		t.Errorf("color = %q, want default #0000ff", got)
	}
}

func TestURDFDecoder_UserPaletteOverride(t *testing.T) {
	input := `<robot name="r">
  <link name="only">
    <visual><geometry><sphere radius="0.1"/></geometry></visual>
  </link>
  <gazebo reference="only"><material>Gazebo/Grey</material></gazebo>
</robot>`
	palette, err := ParsePaletteFromBytes([]byte("colors:\n  Gazebo/Grey: \"#123456\"\n"))
	if err != nil {
		t.Fatalf("palette parse failed: %v", err)
	}
	decoder := NewURDFDecoder()
	decoder.SetPalette(palette)

	robot, _, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := robot.Links["only"].Visual.Color; got != "#123456" {
		t.Errorf("color = %q, want user palette override #123456", got)
	}
}

func TestURDFDecoder_RootFallback(t *testing.T) {
	// Two joints forming a cycle: no link is free of an incoming edge, so the
	// decoder falls back to the first declared link and warns.
	input := `<robot name="loop">
  <link name="a"/>
  <link name="b"/>
  <joint name="ab" type="fixed"><parent link="a"/><child link="b"/></joint>
  <joint name="ba" type="fixed"><parent link="b"/><child link="a"/></joint>
</robot>`
	decoder := NewURDFDecoder()
	robot, warnings, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if robot.Root != "a" {
		t.Errorf("root = %q, want first declared link a", robot.Root)
	}
	if len(warnings) != 1 || warnings[0].Code != WarnRootFallback {
		t.Errorf("warnings = %v, want one %s", warnings, WarnRootFallback)
	}
}

func TestURDFDecoder_Malformed(t *testing.T) {
	decoder := NewURDFDecoder()

	t.Run("wrong root element", func(t *testing.T) {
		if _, _, err := decoder.Decode([]byte(`<scene><thing/></scene>`)); err == nil {
			t.Error("expected error for non-robot root element")
		}
	})

	t.Run("no links", func(t *testing.T) {
		if _, _, err := decoder.Decode([]byte(`<robot name="empty"/>`)); err == nil {
			t.Error("expected error for robot with no links")
		}
	})

	t.Run("malformed attribute does not abort", func(t *testing.T) {
		input := `<robot name="r">
  <link name="only">
    <visual><geometry><sphere radius="not-a-number"/></geometry></visual>
  </link>
</robot>`
		robot, _, err := decoder.Decode([]byte(input))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if robot.Links["only"].Visual.Dims[0] != 0 {
			t.Errorf("bad radius should default to 0, got %v", robot.Links["only"].Visual.Dims[0])
		}
	})
}

func TestURDFRoundTrip(t *testing.T) {
	decoder := NewURDFDecoder()
	first, _, err := decoder.Decode([]byte(armBotURDF))
	if err != nil {
		t.Fatalf("first decode failed: %v", err)
	}

	encoded, err := EncodeURDF(first, EncodeExtended)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	second, warnings, err := decoder.Decode(encoded)
	if err != nil {
		t.Fatalf("re-decode failed: %v\noutput was:\n%s", err, encoded)
	}
	if len(warnings) != 0 {
		t.Errorf("re-decode produced warnings: %v", warnings)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip mismatch\nfirst:  %+v\nsecond: %+v\noutput:\n%s", first, second, encoded)
	}
}

func TestEncodeURDF_Modes(t *testing.T) {
	decoder := NewURDFDecoder()
	robot, _, err := decoder.Decode([]byte(armBotURDF))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	t.Run("standard omits hardware", func(t *testing.T) {
		out, err := EncodeURDF(robot, EncodeStandard)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if strings.Contains(string(out), "<hardware") {
			t.Error("standard mode output contains a hardware element")
		}
	})

	t.Run("extended always emits hardware", func(t *testing.T) {
		out, err := EncodeURDF(robot, EncodeExtended)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if got := strings.Count(string(out), "<hardware"); got != len(robot.Joints) {
			t.Errorf("extended mode emitted %d hardware elements, want %d", got, len(robot.Joints))
		}
	})

	t.Run("no geometry encodes as no element", func(t *testing.T) {
		bare := models.NewRobot("bare")
		bare.Links["solo"] = &models.Link{ID: "solo", Name: "solo", Visual: models.NoGeometry()}
		bare.Root = "solo"
		out, err := EncodeURDF(bare, EncodeStandard)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if strings.Contains(string(out), "<visual") {
			t.Error("geometry type none should not produce a visual element")
		}
	})
}
