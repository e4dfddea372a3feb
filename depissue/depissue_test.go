package depissue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyModuleNotFound(t *testing.T) {
	issues := Classify(`Traceback (most recent call last):
  File "tool.py", line 2, in <module>
ModuleNotFoundError: No module named 'pandas'`)

	require.Len(t, issues, 1)
	assert.Equal(t, "pandas", issues[0].Package)
	assert.Equal(t, KindMissingPackage, issues[0].Kind)
	assert.Contains(t, issues[0].InstallCommands, "pip install pandas")
	assert.NotEmpty(t, issues[0].SuggestedSolutions)
}

func TestClassifyImportError(t *testing.T) {
	issues := Classify("ImportError: No module named 'PIL'")
	require.Len(t, issues, 1)
	assert.Equal(t, "PIL", issues[0].Package)
	assert.Equal(t, KindMissingPackage, issues[0].Kind)
}

func TestClassifyLocalizedNotInstalled(t *testing.T) {
	issues := Classify("执行失败: numpy未安装")
	require.Len(t, issues, 1)
	assert.Equal(t, "numpy", issues[0].Package)
	assert.Equal(t, KindMissingPackage, issues[0].Kind)
}

func TestClassifyPermissionAndNetwork(t *testing.T) {
	issues := Classify("open /etc/out.txt: permission denied")
	require.Len(t, issues, 1)
	assert.Equal(t, KindPermissionError, issues[0].Kind)
	assert.Empty(t, issues[0].InstallCommands)

	issues = Classify("dial tcp 10.0.0.1:443: connection refused")
	require.Len(t, issues, 1)
	assert.Equal(t, KindNetworkError, issues[0].Kind)
}

func TestClassifyVersionConflict(t *testing.T) {
	issues := Classify("pkg_resources.VersionConflict: tool requires requests>=2.28")
	require.NotEmpty(t, issues)
	assert.Equal(t, KindVersionConflict, issues[0].Kind)
}

func TestClassifyDeduplicatesRepeatedMatches(t *testing.T) {
	issues := Classify(`ModuleNotFoundError: No module named 'cv2'
retrying...
ModuleNotFoundError: No module named 'cv2'`)
	assert.Len(t, issues, 1)
}

func TestClassifyMultipleDistinctIssues(t *testing.T) {
	issues := Classify(`ModuleNotFoundError: No module named 'cv2'
dial tcp: connection timed out`)
	require.Len(t, issues, 2)
	assert.Equal(t, KindMissingPackage, issues[0].Kind)
	assert.Equal(t, KindNetworkError, issues[1].Kind)
}

func TestClassifyUnrelatedErrorYieldsNothing(t *testing.T) {
	assert.Empty(t, Classify("division by zero"))
	assert.Empty(t, Classify(""))
	assert.Empty(t, Classify("   "))
}
