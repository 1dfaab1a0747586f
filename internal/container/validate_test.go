package container

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommandBlocksMetacharacters(t *testing.T) {
	for _, c := range []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "{", "}", "\\", "#"} {
		assert.Error(t, ValidateCommand("cmd"+c+"arg"), "char %q should be rejected", c)
	}
}

func TestValidateCommandAllowsCommonChars(t *testing.T) {
	for _, c := range []string{":", "=", "^", ",", "@"} {
		assert.NoError(t, ValidateCommand("cmd"+c+"arg"), "char %q should be allowed", c)
	}
}

func TestValidateCommandRejectsTraversal(t *testing.T) {
	assert.Error(t, ValidateCommand("../etc/passwd"))
}

func TestValidateCommandRejectsTooLong(t *testing.T) {
	assert.Error(t, ValidateCommand(strings.Repeat("a", 101)))
}

func TestValidateCommandAllowsOrdinaryArg(t *testing.T) {
	assert.NoError(t, ValidateCommand("mesh_v2"))
}

func TestValidateScriptNameAllowsOrdinary(t *testing.T) {
	assert.NoError(t, ValidateScriptName("Allrun.sh"))
}

func TestValidateScriptNameRejectsPathSeparators(t *testing.T) {
	assert.Error(t, ValidateScriptName("sub/Allrun"))
	assert.Error(t, ValidateScriptName("sub\\Allrun"))
}

func TestValidateScriptNameRejectsHidden(t *testing.T) {
	assert.Error(t, ValidateScriptName(".Allrun"))
}

func TestValidateScriptNameRejectsTraversal(t *testing.T) {
	assert.Error(t, ValidateScriptName("..Allrun"))
}

func TestValidateScriptNameRejectsTooLong(t *testing.T) {
	assert.Error(t, ValidateScriptName(strings.Repeat("a", 51)))
}

func TestBuildArgvBindsArgsAsPositionalParameters(t *testing.T) {
	argv := BuildArgv("Allrun", []string{"-case", "pitzDaily"})
	assert.Equal(t, []string{"bash", "-c", envScript, "./Allrun", "-case", "pitzDaily"}, argv)
}
