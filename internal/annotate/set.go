package annotate

// Set 有序标注集合，插入顺序即绘制层级（越靠后越在上层，命中测试优先）
type Set []Annotation

// Clone 深拷贝集合（快照用）
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for i, a := range s {
		out[i] = a.Clone()
	}
	return out
}

// Index 按 ID 查找下标，找不到返回 -1
func (s Set) Index(id int) int {
	for i := range s {
		if s[i].ID == id {
			return i
		}
	}
	return -1
}

// Get 按 ID 获取标注
func (s Set) Get(id int) (Annotation, bool) {
	if i := s.Index(id); i >= 0 {
		return s[i], true
	}
	return Annotation{}, false
}

// Without 返回去掉指定 ID 后的新集合
func (s Set) Without(id int) Set {
	out := make(Set, 0, len(s))
	for _, a := range s {
		if a.ID != id {
			out = append(out, a.Clone())
		}
	}
	return out
}

// With 返回追加一个标注后的新集合
func (s Set) With(a Annotation) Set {
	out := s.Clone()
	return append(out, a.Clone())
}

// Replace 返回替换同 ID 标注后的新集合，ID 不存在时原样复制
func (s Set) Replace(a Annotation) Set {
	out := s.Clone()
	if i := out.Index(a.ID); i >= 0 {
		out[i] = a.Clone()
	}
	return out
}

// MaxID 集合中最大的 ID
func (s Set) MaxID() int {
	max := 0
	for _, a := range s {
		if a.ID > max {
			max = a.ID
		}
	}
	return max
}
