package diag

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标（进程内私有注册表；可在运行结束时写出为文本文件）：
// - prakriya_op_total{comp,stage,result}
// - prakriya_error_total{comp,code}
// - prakriya_op_duration_ms{comp,stage}
var (
	metricsMu sync.Mutex
	registry  *prometheus.Registry
	opTotal   *prometheus.CounterVec
	errTotal  *prometheus.CounterVec
	opDur     *prometheus.HistogramVec
)

func init() { ResetMetrics() }

// ResetMetrics 重建注册表（每次运行/测试前调用，保证计数从零开始）。
func ResetMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	registry = prometheus.NewRegistry()
	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prakriya", Name: "op_total", Help: "Operations by component, stage and result.",
	}, []string{"comp", "stage", "result"})
	errTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prakriya", Name: "error_total", Help: "Classified errors by component.",
	}, []string{"comp", "code"})
	opDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prakriya", Name: "op_duration_ms", Help: "Stage duration in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"comp", "stage"})
	registry.MustRegister(opTotal, errTotal, opDur)
}

// Registry 返回当前注册表。
func Registry() *prometheus.Registry {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return registry
}

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	metricsMu.Lock()
	c := opTotal
	metricsMu.Unlock()
	c.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metricsMu.Lock()
	c := errTotal
	metricsMu.Unlock()
	c.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metricsMu.Lock()
	h := opDur
	metricsMu.Unlock()
	h.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// WriteMetrics 以 Prometheus 文本格式写出（node_exporter textfile 约定）。
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, Registry())
}

// OpCounter 返回操作计数器（测试辅助）。
func OpCounter(comp, stage, result string) prometheus.Counter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return opTotal.WithLabelValues(comp, stage, result)
}

// ErrorCounter 返回错误计数器（测试辅助）。
func ErrorCounter(comp, code string) prometheus.Counter {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return errTotal.WithLabelValues(comp, code)
}
