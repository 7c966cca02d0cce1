// Package netlist 读写网表
//
// 每行一个器件, 首字母决定类型:
//
//	R1 n1 n2 1k
//	V1 np nn [dc] 5 [ac 1]
//	I1 np nn 2m ac=1
//	G1 n1 n2 c1 c2 1m
//	D1 a k is=1e-14 n=1 off
//
// "*" 或 "#" 开头的行和行尾 "#" 之后为注释, "." 开头的控制行忽略。
package netlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"spice/ckt"
	"spice/device"
	"spice/types"
)

// card 一行器件定义
type card struct {
	line   int
	name   string
	nodes  []string
	rest   []string          // 节点之后除 key=value 外的字段, 保持原顺序
	values []string          // 位置参数
	params map[string]string // key=value 参数
	flags  map[string]bool   // 单独出现的关键字
}

// pins 各类器件的节点数
var pins = map[byte]int{'R': 2, 'V': 2, 'I': 2, 'D': 2, 'G': 4}

// LoadFile 读取网表文件, 电路以文件名命名
func LoadFile(filename string, cfg types.Config) (*ckt.Circuit, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return Load(file, name, cfg)
}

// Load 读取网表并完成电路初始化
func Load(r io.Reader, name string, cfg types.Config) (*ckt.Circuit, error) {
	c := ckt.New(name, cfg)
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || line[0] == '*' || line[0] == '.' {
			continue
		}
		cd, err := parse(n, line)
		if err != nil {
			return nil, err
		}
		d, err := build(c, cd)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if err := c.Add(d); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(c.Devices()) == 0 {
		return nil, types.BadParam("netlist %s has no devices", name)
	}
	if err := c.Setup(); err != nil {
		return nil, err
	}
	return c, nil
}

func parse(line int, s string) (card, error) {
	fields := strings.Fields(s)
	kind := strings.ToUpper(fields[0][:1])[0]
	np, ok := pins[kind]
	if !ok {
		return card{}, types.BadParam("line %d: unknown device %q", line, fields[0])
	}
	if len(fields) < np+1 {
		return card{}, types.BadParam("line %d: %s needs %d nodes", line, fields[0], np)
	}
	cd := card{
		line:   line,
		name:   fields[0],
		nodes:  fields[1 : np+1],
		params: make(map[string]string),
		flags:  make(map[string]bool),
	}
	for _, f := range fields[np+1:] {
		if k, v, ok := strings.Cut(f, "="); ok {
			cd.params[strings.ToLower(k)] = v
			continue
		}
		cd.rest = append(cd.rest, f)
		if _, err := ParseValue(f); err != nil {
			cd.flags[strings.ToLower(f)] = true
			continue
		}
		cd.values = append(cd.values, f)
	}
	return cd, nil
}

// value 取位置参数 i, 不存在时取 key 参数, 都没有返回 def
func (cd card) value(i int, key string, def float64) (float64, error) {
	if v, ok := cd.params[key]; ok {
		return ParseValue(v)
	}
	if i < len(cd.values) {
		return ParseValue(cd.values[i])
	}
	return def, nil
}

func build(c *ckt.Circuit, cd card) (ckt.Device, error) {
	nodes := make([]int, len(cd.nodes))
	for i, s := range cd.nodes {
		nodes[i] = c.Node(s)
	}
	switch strings.ToUpper(cd.name[:1]) {
	case "R":
		r, err := cd.value(0, "r", 0)
		if err != nil {
			return nil, err
		}
		return device.NewResistor(cd.name, nodes[0], nodes[1], r)
	case "G":
		gm, err := cd.value(0, "gm", 0)
		if err != nil {
			return nil, err
		}
		return device.NewVCCS(cd.name, nodes[0], nodes[1], nodes[2], nodes[3], gm), nil
	case "V", "I":
		dc, ac, err := source(cd)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(cd.name[:1], "V") {
			v := device.NewVSource(c, cd.name, nodes[0], nodes[1], dc)
			v.AC = ac
			return v, nil
		}
		i := device.NewISource(cd.name, nodes[0], nodes[1], dc)
		i.AC = ac
		return i, nil
	case "D":
		is, err := cd.value(0, "is", 1e-14)
		if err != nil {
			return nil, err
		}
		n, err := cd.value(1, "n", 1)
		if err != nil {
			return nil, err
		}
		d, err := device.NewDiode(cd.name, nodes[0], nodes[1], is, n)
		if err != nil {
			return nil, err
		}
		d.Off = cd.flags["off"]
		return d, nil
	}
	return nil, types.Internal("no builder for %s", cd.name)
}

// source 解析 "[dc] v [ac mag]" 形式, 关键字后紧跟的数值归该关键字
func source(cd card) (dc, ac float64, err error) {
	fields := cd.rest
	for i := 0; i < len(fields); i++ {
		target := &dc
		switch strings.ToLower(fields[i]) {
		case "dc":
			i++
		case "ac":
			target = &ac
			i++
			if i == len(fields) {
				*target = 1
				continue
			}
		}
		if i == len(fields) {
			break
		}
		if *target, err = ParseValue(fields[i]); err != nil {
			return 0, 0, fmt.Errorf("%s: %w", cd.name, err)
		}
	}
	for key, target := range map[string]*float64{"dc": &dc, "ac": &ac} {
		if v, ok := cd.params[key]; ok {
			if *target, err = ParseValue(v); err != nil {
				return 0, 0, fmt.Errorf("%s: %w", cd.name, err)
			}
		}
	}
	return dc, ac, nil
}

// ParseValue 解析带工程后缀的数值, 后缀后的单位字母忽略
func ParseValue(s string) (float64, error) {
	t := strings.ToLower(s)
	end := numberEnd(t)
	if end == 0 {
		return 0, types.BadParam("invalid value %q", s)
	}
	v, err := strconv.ParseFloat(t[:end], 64)
	if err != nil {
		return 0, types.BadParam("invalid value %q", s)
	}
	suffix := t[end:]
	if strings.HasPrefix(suffix, "meg") {
		return v * 1e6, nil
	}
	if suffix == "" {
		return v, nil
	}
	if scale, ok := scales[suffix[0]]; ok {
		return v * scale, nil
	}
	if suffix[0] >= 'a' && suffix[0] <= 'z' {
		// 单位, 如 "5v"
		return v, nil
	}
	return 0, types.BadParam("invalid value %q", s)
}

var scales = map[byte]float64{
	'f': 1e-15,
	'p': 1e-12,
	'n': 1e-9,
	'u': 1e-6,
	'm': 1e-3,
	'k': 1e3,
	'g': 1e9,
	't': 1e12,
}

// numberEnd 数值部分的长度
func numberEnd(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		if s[i] != '.' {
			digits++
		}
		i++
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && s[i] == 'e' {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			i = j
		}
	}
	return i
}
