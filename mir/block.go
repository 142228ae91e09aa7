package mir

import "fmt"

// JumpKind is the kind of control transfer that ends a basic block.
type JumpKind int

// Enumeration of jump kinds.
const (
	JumpNone         JumpKind = iota // falls through to the next block
	JumpAlways                       // unconditionally jumps to Dest
	JumpCond                         // jumps to Dest or falls through (ended by a JTrue node)
	JumpReturn                       // ended by a Return node
	JumpThrow                        // ends in a call that never returns
	JumpSwitch                       // ended by a Switch node
	JumpEHFinallyRet                 // returns from a finally handler
)

var jumpKindNames = [...]string{
	JumpNone:         "none",
	JumpAlways:       "always",
	JumpCond:         "cond",
	JumpReturn:       "return",
	JumpThrow:        "throw",
	JumpSwitch:       "switch",
	JumpEHFinallyRet: "ehfinallyret",
}

func (jk JumpKind) Repr() string {
	if jk < 0 || int(jk) >= len(jumpKindNames) {
		return fmt.Sprintf("jump(%d)", int(jk))
	}

	return jumpKindNames[jk]
}

// ParseJumpKind looks up a jump kind by its textual name.
func ParseJumpKind(name string) (JumpKind, bool) {
	for i, jkName := range jumpKindNames {
		if jkName == name {
			return JumpKind(i), true
		}
	}

	return JumpNone, false
}

// BasicBlock is a straight-line sequence of nodes in execution order.
type BasicBlock struct {
	// Num is the block number.  It is unique within the method.
	Num int

	Kind JumpKind

	// Dest is the explicit jump target of JumpAlways and JumpCond blocks.
	Dest *BasicBlock

	// Next is the lexical successor of the block.  It is set by LinkBlocks.
	Next *BasicBlock

	// Preds are the predecessor blocks in edge order: a block appears once
	// for every edge it has into this block.
	Preds []*BasicBlock

	// DomChildren are the blocks immediately dominated by this block.
	DomChildren []*BasicBlock

	// Nodes are the nodes of the block in execution order.
	Nodes []*Node
}

// Name returns the display name of the block.
func (b *BasicBlock) Name() string {
	if b.Num < 10 {
		return fmt.Sprintf("BB0%d", b.Num)
	}

	return fmt.Sprintf("BB%d", b.Num)
}

// -----------------------------------------------------------------------------

// LinkBlocks sets the lexical successor of every block from the order of the
// method's block list.
func (m *Method) LinkBlocks() {
	for i, b := range m.Blocks {
		if i+1 < len(m.Blocks) {
			b.Next = m.Blocks[i+1]
		} else {
			b.Next = nil
		}
	}
}

// FirstBlock returns the entry block of the method: the root of the dominator
// tree.
func (m *Method) FirstBlock() *BasicBlock {
	if len(m.Blocks) == 0 {
		return nil
	}

	return m.Blocks[0]
}

// WalkDomTree calls visit for every block reachable in the dominator tree, in
// pre-order: a block is always visited before all the blocks it dominates.
func (m *Method) WalkDomTree(visit func(b *BasicBlock)) {
	root := m.FirstBlock()
	if root == nil {
		return
	}

	// explicit stack so deep trees don't grow the goroutine stack
	stack := []*BasicBlock{root}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visit(b)

		// push in reverse so that children are visited in order
		for i := len(b.DomChildren) - 1; i >= 0; i-- {
			stack = append(stack, b.DomChildren[i])
		}
	}
}
