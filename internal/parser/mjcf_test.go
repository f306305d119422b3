package parser

import (
	"math"
	"testing"

	"github.com/robot-workbench/backend/internal/models"
)

const cartPoleMJCF = `<mujoco model="cart_pole">
  <asset>
    <mesh name="wheel" file="assets/wheel.obj" scale="0.01"/>
  </asset>
  <worldbody>
    <body name="cart" pos="0 0 0.2">
      <geom type="box" size="0.5 0.5 0.5" rgba="1 0 0 1"/>
      <geom type="sphere" size="9"/>
      <body name="pole" pos="0 0 0.1">
        <joint name="hinge_joint" type="hinge" axis="0 1 0" range="-1 1" damping="0.5"/>
        <geom type="capsule" size="0.02 0.3"/>
        <body name="tip">
          <geom type="mesh" mesh="wheel"/>
        </body>
      </body>
    </body>
  </worldbody>
</mujoco>`

func TestMJCFDecoder_Decode(t *testing.T) {
	decoder := NewMJCFDecoder()
	robot, warnings, err := decoder.Decode([]byte(cartPoleMJCF))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if robot.Name != "cart_pole" {
		t.Errorf("name = %q, want cart_pole", robot.Name)
	}
	if robot.Root != "cart" {
		t.Errorf("root = %q, want cart", robot.Root)
	}
	if len(robot.Links) != 3 || len(robot.Joints) != 2 {
		t.Fatalf("got %d links / %d joints, want 3 / 2", len(robot.Links), len(robot.Joints))
	}

	t.Run("box half-extents are doubled", func(t *testing.T) {
		cart := robot.Links["cart"].Visual
		if cart.Type != models.GeomBox {
			t.Fatalf("type = %v, want box", cart.Type)
		}
		if cart.Dims != (models.Vec3{1, 1, 1}) {
			t.Errorf("dims = %v, want {1 1 1}", cart.Dims)
		}
		if cart.Color != "#ff0000" {
			t.Errorf("color = %q, want #ff0000", cart.Color)
		}
	})

	t.Run("only the first geom is kept", func(t *testing.T) {
		if robot.Links["cart"].Visual.Type == models.GeomSphere {
			t.Error("second geom should have been dropped")
		}
	})

	t.Run("capsule becomes cylinder with doubled length", func(t *testing.T) {
		pole := robot.Links["pole"].Visual
		if pole.Type != models.GeomCylinder {
			t.Fatalf("type = %v, want cylinder", pole.Type)
		}
		if pole.Dims[0] != 0.02 || pole.Dims[1] != 0.6 {
			t.Errorf("dims = %v, want radius 0.02 length 0.6", pole.Dims)
		}
	})

	t.Run("geom without rgba gets the default color", func(t *testing.T) {
		if got := robot.Links["pole"].Visual.Color; got != "#808080" {
			t.Errorf("color = %q, want #808080", got)
		}
	})

	t.Run("hinge joint", func(t *testing.T) {
		j := robot.Joints["hinge_joint"]
		if j == nil {
			t.Fatal("hinge_joint not found")
		}
		if j.Type != models.JointRevolute {
			t.Errorf("type = %v, want revolute", j.Type)
		}
		if j.Parent != "cart" || j.Child != "pole" {
			t.Errorf("endpoints = %s -> %s", j.Parent, j.Child)
		}
		if j.Axis != (models.Vec3{0, 1, 0}) {
			t.Errorf("axis = %v", j.Axis)
		}
		if j.Limits.Lower != -1 || j.Limits.Upper != 1 {
			t.Errorf("limits = %+v", j.Limits)
		}
		if j.Dynamics.Damping != 0.5 {
			t.Errorf("damping = %v", j.Dynamics.Damping)
		}
		if j.Origin.XYZ != (models.Vec3{0, 0, 0.1}) {
			t.Errorf("origin = %v, want the body frame offset", j.Origin.XYZ)
		}
	})

	t.Run("jointless body is fixed to its parent", func(t *testing.T) {
		j := robot.Joints["tip_joint"]
		if j == nil {
			t.Fatal("synthetic joint for tip not found")
		}
		if j.Type != models.JointFixed {
			t.Errorf("type = %v, want fixed", j.Type)
		}
	})

	t.Run("mesh asset lookup", func(t *testing.T) {
		tip := robot.Links["tip"].Visual
		if tip.Type != models.GeomMesh {
			t.Fatalf("type = %v, want mesh", tip.Type)
		}
		if tip.MeshFile != "wheel.obj" {
			t.Errorf("mesh file = %q, want wheel.obj", tip.MeshFile)
		}
		if tip.MeshScale != (models.Vec3{0.01, 0.01, 0.01}) {
			t.Errorf("mesh scale = %v", tip.MeshScale)
		}
	})

	t.Run("tree is valid", func(t *testing.T) {
		if err := robot.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})
}

func TestMJCFDecoder_JointTypes(t *testing.T) {
	input := `<mujoco>
  <worldbody>
    <body name="base">
      <body name="slider"><joint name="j_slide" type="slide"/></body>
      <body name="orb"><joint name="j_ball" type="ball"/></body>
      <body name="drone"><joint name="j_free" type="free"/></body>
      <body name="untyped"><joint name="j_default"/></body>
    </body>
  </worldbody>
</mujoco>`
	decoder := NewMJCFDecoder()
	robot, warnings, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := map[string]models.JointType{
		"j_slide":   models.JointPrismatic,
		"j_ball":    models.JointContinuous,
		"j_free":    models.JointContinuous,
		"j_default": models.JointRevolute,
	}
	for id, wt := range want {
		j := robot.Joints[id]
		if j == nil {
			t.Errorf("joint %s not found", id)
			continue
		}
		if j.Type != wt {
			t.Errorf("joint %s type = %v, want %v", id, j.Type, wt)
		}
	}

	// Ball and free each surface a lossy-approximation warning.
	lossy := 0
	for _, w := range warnings {
		if w.Code == WarnLossyJoint {
			lossy++
		}
	}
	if lossy != 2 {
		t.Errorf("got %d lossy-joint warnings, want 2: %v", lossy, warnings)
	}
}

func TestMJCFDecoder_EulerPrecedence(t *testing.T) {
	input := `<mujoco>
  <worldbody>
    <body name="base">
      <body name="arm" pos="0 0 1" euler="0.5 0 0" quat="0 0 0 1">
        <joint name="j" type="hinge"/>
      </body>
    </body>
  </worldbody>
</mujoco>`
	decoder := NewMJCFDecoder()
	robot, _, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	j := robot.Joints["j"]
	if j.Origin.RPY != (models.Vec3{0.5, 0, 0}) {
		t.Errorf("RPY = %v, want euler {0.5 0 0} to win over quat", j.Origin.RPY)
	}
}

func TestMJCFDecoder_QuatFallback(t *testing.T) {
	// Quaternion for a 90 degree roll, used when no euler attribute exists.
	input := `<mujoco>
  <worldbody>
    <body name="base">
      <body name="arm" quat="0.7071067811865476 0.7071067811865476 0 0">
        <joint name="j" type="hinge"/>
      </body>
    </body>
  </worldbody>
</mujoco>`
	decoder := NewMJCFDecoder()
	robot, _, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	roll := robot.Joints["j"].Origin.RPY[0]
	if math.Abs(roll-math.Pi/2) > 1e-6 {
		t.Errorf("roll = %v, want pi/2", roll)
	}
}

func TestMJCFDecoder_Placeholders(t *testing.T) {
	decoder := NewMJCFDecoder()

	t.Run("body without geoms gets a placeholder box", func(t *testing.T) {
		input := `<mujoco><worldbody><body name="ghost"/></worldbody></mujoco>`
		robot, _, err := decoder.Decode([]byte(input))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		g := robot.Links["ghost"].Visual
		if g.Type != models.GeomBox || g.Dims != (models.Vec3{0.1, 0.1, 0.1}) {
			t.Errorf("placeholder = %+v", g)
		}
	})

	t.Run("plane approximates to a thin box", func(t *testing.T) {
		input := `<mujoco><worldbody><body name="floor"><geom type="plane" size="2 2 0.1"/></body></worldbody></mujoco>`
		robot, _, err := decoder.Decode([]byte(input))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		g := robot.Links["floor"].Visual
		if g.Type != models.GeomBox || g.Dims != (models.Vec3{4, 4, 0.01}) {
			t.Errorf("plane geometry = %+v", g)
		}
	})

	t.Run("unnamed bodies get generated ids", func(t *testing.T) {
		input := `<mujoco><worldbody><body><geom type="sphere" size="1"/></body></worldbody></mujoco>`
		robot, _, err := decoder.Decode([]byte(input))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if robot.Root != "body_1" {
			t.Errorf("root = %q, want generated id body_1", robot.Root)
		}
	})
}

func TestMJCFDecoder_ExtraTopLevelBodies(t *testing.T) {
	input := `<mujoco>
  <worldbody>
    <body name="first"/>
    <body name="second"/>
  </worldbody>
</mujoco>`
	decoder := NewMJCFDecoder()
	robot, warnings, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if robot.Root != "first" {
		t.Errorf("root = %q, want first", robot.Root)
	}
	j := robot.Joints["second_joint"]
	if j == nil || j.Type != models.JointFixed || j.Parent != "first" {
		t.Errorf("second body should be fixed to the root, got %+v", j)
	}
	found := false
	for _, w := range warnings {
		if w.Code == WarnExtraRoot {
			found = true
		}
	}
	if !found {
		t.Errorf("missing %s warning: %v", WarnExtraRoot, warnings)
	}
	if err := robot.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestMJCFDecoder_Malformed(t *testing.T) {
	decoder := NewMJCFDecoder()

	t.Run("wrong root element", func(t *testing.T) {
		if _, _, err := decoder.Decode([]byte(`<robot name="x"><link name="a"/></robot>`)); err == nil {
			t.Error("expected error for non-mujoco root element")
		}
	})

	t.Run("empty worldbody", func(t *testing.T) {
		if _, _, err := decoder.Decode([]byte(`<mujoco><worldbody/></mujoco>`)); err == nil {
			t.Error("expected error for worldbody with no bodies")
		}
	})
}
