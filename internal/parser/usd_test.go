package parser

import (
	"math"
	"reflect"
	"testing"

	"github.com/robot-workbench/backend/internal/models"
)

func TestUSDTokens(t *testing.T) {
	t.Run("braces and assignment are standalone tokens", func(t *testing.T) {
		got := usdTokens([]byte(`def Cube "torso" { double size = 2 }`))
		want := []string{"def", "Cube", `"torso"`, "{", "double", "size", "=", "2", "}"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tokens = %v, want %v", got, want)
		}
	})

	t.Run("quoted strings keep embedded whitespace", func(t *testing.T) {
		got := usdTokens([]byte(`"hello world"`))
		if len(got) != 1 || got[0] != `"hello world"` {
			t.Errorf("tokens = %v", got)
		}
	})

	t.Run("bracketed tuples survive as one token", func(t *testing.T) {
		got := usdTokens([]byte(`xformOp:translate = (0, 0, 0.5)`))
		want := []string{"xformOp:translate", "=", "(0, 0, 0.5)"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tokens = %v, want %v", got, want)
		}
	})

	t.Run("nested brackets track depth", func(t *testing.T) {
		got := usdTokens([]byte(`[(1, 0, 0), (0, 1, 0)]`))
		if len(got) != 1 || got[0] != `[(1, 0, 0), (0, 1, 0)]` {
			t.Errorf("tokens = %v", got)
		}
	})

	t.Run("comments run to end of line", func(t *testing.T) {
		got := usdTokens([]byte("# layer header\ndef"))
		if len(got) != 1 || got[0] != "def" {
			t.Errorf("tokens = %v", got)
		}
	})
}

func TestParseUSDValue(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		v := parseUSDValue("2.5")
		if v.kind != usdNumber || v.num != 2.5 {
			t.Errorf("got %+v", v)
		}
	})

	t.Run("string", func(t *testing.T) {
		v := parseUSDValue(`"hello"`)
		if v.kind != usdString || v.str != "hello" {
			t.Errorf("got %+v", v)
		}
	})

	t.Run("bool", func(t *testing.T) {
		if v := parseUSDValue("true"); v.kind != usdBool || !v.b {
			t.Errorf("got %+v", v)
		}
	})

	t.Run("tuple to vec3", func(t *testing.T) {
		v := parseUSDValue("(0, 0, 0.5)")
		if v.vec3() != (models.Vec3{0, 0, 0.5}) {
			t.Errorf("vec3 = %v", v.vec3())
		}
	})

	t.Run("single-element array unwraps", func(t *testing.T) {
		v := parseUSDValue("[(1, 0, 0)]")
		if v.vec3() != (models.Vec3{1, 0, 0}) {
			t.Errorf("vec3 = %v", v.vec3())
		}
	})
}

const humanoidUSD = `#usda 1.0
(
    defaultPrim = "robot_base"
    upAxis = "Z"
)

def Xform "robot_base"
{
    def Cube "torso"
    {
        double size = 0.4
        color3f[] primvars:displayColor = [(1, 0, 0)]
        double3 xformOp:translate = (0, 0, 0.5)
        uniform token[] xformOpOrder = ["xformOp:translate"]
    }

    def Scope "Geometry"
    {
        def Sphere "head"
        {
            double radius = 0.1
            double3 xformOp:rotateXYZ = (90, 0, 0)
        }
    }

    def PhysicsRevoluteJoint "neck"
    {
        rel physics:body0 = </robot_base/torso>
    }

    def Material "skin"
    {
    }
}
`

func TestUSDDecoder_Decode(t *testing.T) {
	decoder := NewUSDDecoder()
	robot, warnings, err := decoder.Decode([]byte(humanoidUSD))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if robot.Name != "robot_base" {
		t.Errorf("name = %q, want defaultPrim robot_base", robot.Name)
	}
	if robot.Root != "/robot_base" {
		t.Errorf("root = %q, want /robot_base", robot.Root)
	}
	if len(robot.Links) != 4 {
		t.Fatalf("got %d links, want 4 (Material prim must not become a link)", len(robot.Links))
	}
	if len(robot.Joints) != 3 {
		t.Fatalf("got %d joints, want 3", len(robot.Joints))
	}

	t.Run("cube size and display color", func(t *testing.T) {
		torso := robot.Links["/robot_base/torso"]
		if torso == nil {
			t.Fatal("torso link not found")
		}
		if torso.Visual.Type != models.GeomBox || torso.Visual.Dims != (models.Vec3{0.4, 0.4, 0.4}) {
			t.Errorf("geometry = %+v", torso.Visual)
		}
		if torso.Visual.Color != "#ff0000" {
			t.Errorf("color = %q, want #ff0000", torso.Visual.Color)
		}
	})

	t.Run("translate becomes the joint origin", func(t *testing.T) {
		j := robot.Joints["/robot_base/torso_joint"]
		if j == nil {
			t.Fatal("torso joint not found")
		}
		if j.Type != models.JointFixed {
			t.Errorf("type = %v, want fixed", j.Type)
		}
		if j.Parent != "/robot_base" || j.Child != "/robot_base/torso" {
			t.Errorf("endpoints = %s -> %s", j.Parent, j.Child)
		}
		if j.Origin.XYZ != (models.Vec3{0, 0, 0.5}) {
			t.Errorf("origin = %v", j.Origin.XYZ)
		}
	})

	t.Run("rotateXYZ degrees convert to radians", func(t *testing.T) {
		j := robot.Joints["/robot_base/Geometry/head_joint"]
		if j == nil {
			t.Fatal("head joint not found")
		}
		if math.Abs(j.Origin.RPY[0]-math.Pi/2) > 1e-6 {
			t.Errorf("roll = %v, want pi/2", j.Origin.RPY[0])
		}
	})

	t.Run("scope prims become links in the chain", func(t *testing.T) {
		if robot.Links["/robot_base/Geometry"] == nil {
			t.Error("Scope prim should map to a link")
		}
		head := robot.Joints["/robot_base/Geometry/head_joint"]
		if head != nil && head.Parent != "/robot_base/Geometry" {
			t.Errorf("head parent = %q, want the Scope link", head.Parent)
		}
	})

	t.Run("joint prims are recognized but skipped", func(t *testing.T) {
		found := false
		for _, w := range warnings {
			if w.Code == WarnJointPrim {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %s warning: %v", WarnJointPrim, warnings)
		}
	})

	t.Run("tree is valid", func(t *testing.T) {
		if err := robot.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})
}

func TestUSDDecoder_IntrinsicDefaults(t *testing.T) {
	input := `def Xform "root"
{
    def Cube "a" { }
    def Cylinder "b" { }
    def Capsule "c" { }
}
`
	decoder := NewUSDDecoder()
	robot, _, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if g := robot.Links["/root/a"].Visual; g.Type != models.GeomBox || g.Dims != (models.Vec3{2, 2, 2}) {
		t.Errorf("cube default = %+v", g)
	}
	if g := robot.Links["/root/b"].Visual; g.Type != models.GeomCylinder || g.Dims != (models.Vec3{1, 2, 0}) {
		t.Errorf("cylinder default = %+v", g)
	}
	// Capsule has no canonical counterpart and maps to a cylinder.
	if g := robot.Links["/root/c"].Visual; g.Type != models.GeomCylinder || g.Dims != (models.Vec3{0.5, 1, 0}) {
		t.Errorf("capsule default = %+v", g)
	}
}

func TestUSDDecoder_ExtraTopLevelPrims(t *testing.T) {
	input := `def Xform "first" { }
def Xform "second" { }
`
	decoder := NewUSDDecoder()
	robot, warnings, err := decoder.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if robot.Root != "/first" {
		t.Errorf("root = %q, want /first", robot.Root)
	}
	j := robot.Joints["/second_joint"]
	if j == nil || j.Type != models.JointFixed || j.Parent != "/first" {
		t.Errorf("second prim should be fixed to the root, got %+v", j)
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
}

func TestUSDDecoder_Sniff(t *testing.T) {
	decoder := NewUSDDecoder()

	cases := []struct {
		name string
		data string
		want bool
	}{
		{"layer marker", "#usda 1.0\n", true},
		{"defaultPrim declaration", `( defaultPrim = "x" )`, true},
		{"bare def pattern", `def Xform "x" { }`, true},
		{"urdf content", `<robot name="x"><link name="a"/></robot>`, false},
		{"plain text", "nothing to see here", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := decoder.Sniff("upload.txt", []byte(c.data)); got != c.want {
				t.Errorf("Sniff = %v, want %v", got, c.want)
			}
		})
	}
}

func TestUSDDecoder_Malformed(t *testing.T) {
	decoder := NewUSDDecoder()
	if _, _, err := decoder.Decode([]byte("just some prose, no prims")); err == nil {
		t.Error("expected error for input without prim definitions")
	}
	if _, _, err := decoder.Decode([]byte("#usda 1.0\n")); err == nil {
		t.Error("expected error for an empty layer")
	}
}
