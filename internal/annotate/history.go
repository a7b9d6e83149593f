package annotate

// History 撤销/重做管理器，栈中保存整个标注集合的快照
type History struct {
	annotations Set   // 当前标注列表
	undoStack   []Set // 撤销栈（保存之前的状态快照）
	redoStack   []Set // 重做栈
	maxHistory  int
}

// NewHistory 创建历史记录管理器
func NewHistory(maxHistory int) *History {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &History{
		annotations: make(Set, 0),
		undoStack:   make([]Set, 0),
		redoStack:   make([]Set, 0),
		maxHistory:  maxHistory,
	}
}

// snapshot 创建当前状态快照
func (h *History) snapshot() Set {
	return h.annotations.Clone()
}

func (h *History) pushUndo(s Set) {
	h.undoStack = append(h.undoStack, s)
	if len(h.undoStack) > h.maxHistory {
		h.undoStack = h.undoStack[1:]
	}
}

// Commit 用新集合替换当前集合（保存撤销点，清空重做栈）
func (h *History) Commit(next Set) {
	h.pushUndo(h.snapshot())
	h.redoStack = h.redoStack[:0]
	h.annotations = next.Clone()

	Logger().Debug("history commit", "count", len(next), "undo", len(h.undoStack))
}

// Checkpoint 保存一个已经拍好的快照作为撤销点，当前集合保持不变。
// 拖拽在手势开始时拍快照，之后逐帧原地修改
func (h *History) Checkpoint(before Set) {
	h.pushUndo(before.Clone())
	h.redoStack = h.redoStack[:0]

	Logger().Debug("history checkpoint", "undo", len(h.undoStack))
}

// Update 原地替换同 ID 标注，不产生撤销点（拖拽中间状态）
func (h *History) Update(a Annotation) bool {
	i := h.annotations.Index(a.ID)
	if i < 0 {
		return false
	}
	h.annotations[i] = a.Clone()
	return true
}

// Undo 撤销上一步操作，返回是否成功
func (h *History) Undo() bool {
	if len(h.undoStack) == 0 {
		return false
	}

	// 保存当前状态到重做栈
	h.redoStack = append(h.redoStack, h.snapshot())

	// 恢复到上一个状态
	last := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.annotations = last

	Logger().Debug("history undo", "count", len(last), "undo", len(h.undoStack), "redo", len(h.redoStack))
	return true
}

// Redo 重做上一步撤销，返回是否成功
func (h *History) Redo() bool {
	if len(h.redoStack) == 0 {
		return false
	}

	// 保存当前状态到撤销栈
	h.pushUndo(h.snapshot())

	// 恢复到下一个状态
	last := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.annotations = last

	Logger().Debug("history redo", "count", len(last), "undo", len(h.undoStack), "redo", len(h.redoStack))
	return true
}

// Annotations 获取当前所有标注（调用方不应修改返回值）
func (h *History) Annotations() Set {
	return h.annotations
}

// CanUndo 是否可以撤销
func (h *History) CanUndo() bool {
	return len(h.undoStack) > 0
}

// CanRedo 是否可以重做
func (h *History) CanRedo() bool {
	return len(h.redoStack) > 0
}

// Reset 清空所有标注和历史，可选地以给定集合作为新的初始状态
func (h *History) Reset(initial Set) {
	h.annotations = initial.Clone()
	h.undoStack = h.undoStack[:0]
	h.redoStack = h.redoStack[:0]
}
