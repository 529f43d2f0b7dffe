package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

type opLog struct {
	ops      []string
	draws    [][4]uint32
	clear    mgl32.Vec4
	beginErr error
}

func (l *opLog) Begin() error {
	l.ops = append(l.ops, "begin")
	return l.beginErr
}

func (l *opLog) BeginRenderPass(_ vulkan.RenderPass, _ vulkan.Framebuffer, _ vulkan.Extent2D, clear mgl32.Vec4) {
	l.ops = append(l.ops, "begin-pass")
	l.clear = clear
}

func (l *opLog) BindPipeline(vulkan.Pipeline) { l.ops = append(l.ops, "bind") }

func (l *opLog) Draw(v, i, fv, fi uint32) {
	l.ops = append(l.ops, "draw")
	l.draws = append(l.draws, [4]uint32{v, i, fv, fi})
}

func (l *opLog) EndRenderPass() { l.ops = append(l.ops, "end-pass") }

func (l *opLog) End() error {
	l.ops = append(l.ops, "end")
	return nil
}

func testPass() drawPass {
	return drawPass{
		renderPass:  vulkan.RenderPass(vulkan.NullHandle),
		framebuffer: vulkan.Framebuffer(vulkan.NullHandle),
		pipeline:    vulkan.Pipeline(vulkan.NullHandle),
		extent:      vulkan.Extent2D{Width: 800, Height: 600},
		clear:       clearBlack,
	}
}

func TestRecordDrawSequence(t *testing.T) {
	var l opLog
	require.NoError(t, recordDraw(&l, testPass()))
	assert.Equal(t, []string{"begin", "begin-pass", "bind", "draw", "end-pass", "end"}, l.ops)
	assert.Equal(t, [][4]uint32{{3, 1, 0, 0}}, l.draws)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, l.clear)
}

func TestRecordDrawStopsOnBeginFailure(t *testing.T) {
	l := opLog{beginErr: errors.New("boom")}
	assert.Error(t, recordDraw(&l, testPass()))
	assert.Equal(t, []string{"begin"}, l.ops)
}

func TestStreamIsDeterministic(t *testing.T) {
	a, b := newStreamEncoder(), newStreamEncoder()
	require.NoError(t, recordDraw(a, testPass()))
	require.NoError(t, recordDraw(b, testPass()))
	assert.NotEmpty(t, a.Bytes())
	assert.Equal(t, a.Bytes(), b.Bytes())

	other := testPass()
	other.clear = mgl32.Vec4{1, 0, 0, 1}
	c := newStreamEncoder()
	require.NoError(t, recordDraw(c, other))
	assert.NotEqual(t, a.Bytes(), c.Bytes())

	resized := testPass()
	resized.extent.Width = 1024
	d := newStreamEncoder()
	require.NoError(t, recordDraw(d, resized))
	assert.NotEqual(t, a.Bytes(), d.Bytes())
}

func TestTeeEncoder(t *testing.T) {
	var l1, l2 opLog
	stream := newStreamEncoder()
	require.NoError(t, recordDraw(teeEncoder{&l1, &l2, stream}, testPass()))
	assert.Equal(t, l1.ops, l2.ops)
	assert.Len(t, l1.ops, 6)

	direct := newStreamEncoder()
	require.NoError(t, recordDraw(direct, testPass()))
	assert.Equal(t, direct.Bytes(), stream.Bytes())
}

func TestStreamSharedAcrossPasses(t *testing.T) {
	single := newStreamEncoder()
	require.NoError(t, recordDraw(single, testPass()))

	shared := newStreamEncoder()
	require.NoError(t, recordDraw(shared, testPass()))
	require.NoError(t, recordDraw(shared, testPass()))

	// the same handles keep their numbers in the second buffer
	want := append(append([]byte{}, single.Bytes()...), single.Bytes()...)
	assert.Equal(t, want, shared.Bytes())
	assert.Len(t, shared.handles, 3)
}
